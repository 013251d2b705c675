// cmd/intake-bot/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intake-bot/internal/archive"
	"intake-bot/internal/bot"
	"intake-bot/internal/broadcast"
	"intake-bot/internal/common/config"
	"intake-bot/internal/common/database"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/observability"
	"intake-bot/internal/conversation"
	"intake-bot/internal/models"
	"intake-bot/internal/relay"
	"intake-bot/internal/router"
	"intake-bot/internal/store"
	"intake-bot/internal/telegram"
	"intake-bot/pkg/registry"
)

const pollRetryDelay = 3 * time.Second

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")
	bootLog.Info("Starting intake bot...")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Team registry ---
	teams := registry.Default()
	if cfg.Teams.RegistryPath != "" {
		teams, err = registry.LoadRegistry(cfg.Teams.RegistryPath)
		if err != nil {
			zapLog.Fatal("team registry load failed", zap.Error(err))
		}
	}
	zapLog.Info("Team registry loaded", zap.Strings("teams", teams.IDs()))

	// --- Application store ---
	appStore, err := store.New(cfg.Storage, cfg.Form, log)
	if err != nil {
		zapLog.Fatal("application store init failed", zap.Error(err))
	}
	zapLog.Info("Application store ready", zap.String("dataDir", cfg.Storage.DataDir))

	// --- Init Redis with retry (only for the redis publication map) ---
	var redisClient *database.RedisClient
	if cfg.PubMap.Backend == "redis" {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			// Test the connection with context
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}

	pubmap, err := router.NewPubMap(cfg.PubMap, redisClient)
	if err != nil {
		zapLog.Fatal("publication map init failed", zap.Error(err))
	}

	// --- Init PostgreSQL decision archive with retry ---
	var archiver router.Archiver
	if cfg.Archive.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			// Test the connection with context
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		pgArchive := archive.New(pg.DB, log)
		if err := pgArchive.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("archive schema init failed", zap.Error(err))
		}
		archiver = pgArchive
		zapLog.Info("PostgreSQL decision archive enabled")
	}

	// --- Init Telegram client with retry ---
	tg := telegram.NewClient(cfg.Bot, log)

	var me models.User
	err = retryWithBackoff(func() error {
		var err error
		me, err = tg.GetMe(ctx)
		return err
	}, 10, 2*time.Second, zapLog, "Telegram identity check")

	if err != nil {
		zapLog.Fatal("telegram failed after retries", zap.Error(err))
	}
	zapLog.Info("Telegram bot authorized",
		zap.Int64("botId", me.ID),
		zap.String("username", me.Username),
	)

	// Long polling and webhooks are mutually exclusive on the Bot API side.
	if err := tg.DeleteWebhook(ctx, true); err != nil {
		zapLog.Warn("failed to delete webhook", zap.Error(err))
	}

	commands := []telegram.Command{
		{Command: "start", Description: "بدء التقديم"},
		{Command: "menu", Description: "القائمة الرئيسية"},
		{Command: "help", Description: "المساعدة"},
		{Command: "status", Description: "حالة طلباتك"},
		{Command: "cancel", Description: "إلغاء التقديم الحالي"},
	}
	if err := tg.SetMyCommands(ctx, commands); err != nil {
		zapLog.Warn("failed to register command menu", zap.Error(err))
	}

	// --- Wire the components ---
	decisionRouter := router.NewRouter(cfg.Bot.AdminGroupID, teams, tg, pubmap, appStore, archiver, log)
	bridge := relay.New(cfg.Bot.AdminGroupID, cfg.Relay.MediaMaxBytes, tg, pubmap, appStore, log)
	engine := conversation.NewEngine(cfg.Form, teams, appStore, tg, decisionRouter, log)
	fanout := broadcast.New(cfg.Broadcast, tg, appStore, log)

	dispatcher := bot.NewDispatcher(bot.Options{
		AdminGroupID: cfg.Bot.AdminGroupID,
		Transport:    tg,
		Conversation: engine,
		Decisions:    decisionRouter,
		Bridge:       bridge,
		Fanout:       fanout,
		Store:        appStore,
		Teams:        teams,
		Logger:       log,
	})

	// --- Health & Metrics Server ---
	if cfg.Metrics.Enabled {
		go func() {
			http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "ready",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		zapLog.Info("Shutdown signal received, stopping...", zap.String("signal", sig.String()))
		cancel()
	}()

	zapLog.Info("Intake bot running", zap.Int64("adminGroupId", cfg.Bot.AdminGroupID))

	// --- Long-poll loop ---
	var offset int64
	for ctx.Err() == nil {
		updates, err := tg.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			zapLog.Warn("polling failed", zap.Error(err))
			time.Sleep(pollRetryDelay)
			continue
		}
		if len(updates) == 0 {
			continue
		}

		// Confirm the batch up front so one poisoned update cannot be
		// redelivered forever.
		offset = updates[len(updates)-1].ID + 1

		started := time.Now()
		dispatcher.DispatchBatch(ctx, updates)
		for range updates {
			obs.RecordUpdateProcessed(ctx, "dispatched")
		}
		obs.RecordUpdateDuration(ctx, time.Since(started), "batch")
	}

	zapLog.Info("Waiting for in-flight broadcasts...")
	dispatcher.Wait()

	zapLog.Info("Intake bot stopped gracefully")
}

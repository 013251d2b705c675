// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like BOT_TOKEN
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries the usual .env locations so the binary, the tools, and
// tests under test/e2e all pick up the same file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills critical fields straight from the environment
// when the config files left them empty. The variable names match the
// deployment that has been running this bot.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Bot.Token == "" {
		if val := os.Getenv("BOT_TOKEN"); val != "" {
			cfg.Bot.Token = val
		}
	}
	if cfg.Bot.AdminGroupID == 0 {
		if val := os.Getenv("ADMIN_GROUP_ID"); val != "" {
			if id, err := strconv.ParseInt(val, 10, 64); err == nil {
				cfg.Bot.AdminGroupID = id
			}
		}
	}
	if cfg.Storage.DataDir == "" {
		if val := os.Getenv("DATA_DIR"); val != "" {
			cfg.Storage.DataDir = val
		}
	}

	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "intake-bot"
	}

	// Bot defaults
	if cfg.Bot.APIBaseURL == "" {
		cfg.Bot.APIBaseURL = "https://api.telegram.org"
	}
	if cfg.Bot.PollTimeout == 0 {
		cfg.Bot.PollTimeout = 30000
	}
	if cfg.Bot.RequestTimeout == 0 {
		cfg.Bot.RequestTimeout = 30000
	}

	// Storage defaults keep the historical file names
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.ApplicationsFile == "" {
		cfg.Storage.ApplicationsFile = "applications.json"
	}
	if cfg.Storage.UsersFile == "" {
		cfg.Storage.UsersFile = "users.json"
	}
	if cfg.Storage.BannedFile == "" {
		cfg.Storage.BannedFile = "banned_users.json"
	}

	// Form defaults
	if cfg.Form.ReasonMinLength == 0 {
		cfg.Form.ReasonMinLength = 10
	}
	if cfg.Form.ReasonMaxLength == 0 {
		cfg.Form.ReasonMaxLength = 1000
	}
	if cfg.Form.ExperienceMinLength == 0 {
		cfg.Form.ExperienceMinLength = 5
	}
	if cfg.Form.ExperienceMaxLength == 0 {
		cfg.Form.ExperienceMaxLength = 1000
	}
	if cfg.Form.CooldownHours == 0 {
		cfg.Form.CooldownHours = 24
	}

	// Publication map defaults
	if cfg.PubMap.Backend == "" {
		cfg.PubMap.Backend = "memory"
	}
	if cfg.PubMap.TTL == 0 {
		cfg.PubMap.TTL = 7 * 24 * 3600 * 1000
	}
	if cfg.PubMap.MaxEntries == 0 {
		cfg.PubMap.MaxEntries = 4096
	}

	// Relay defaults
	if cfg.Relay.MediaMaxBytes == 0 {
		cfg.Relay.MediaMaxBytes = 50 * 1024 * 1024
	}

	// Broadcast defaults
	if cfg.Broadcast.MinLength == 0 {
		cfg.Broadcast.MinLength = 5
	}
	if cfg.Broadcast.Throttle == 0 {
		cfg.Broadcast.Throttle = 50
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.KeyPrefix == "" {
		cfg.Database.Redis.KeyPrefix = "intake"
	}

	// Metrics defaults
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9091
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot.token is required")
	}
	if cfg.Bot.AdminGroupID == 0 {
		return fmt.Errorf("bot.admin_group_id is required")
	}

	if cfg.PubMap.Backend != "memory" && cfg.PubMap.Backend != "redis" {
		return fmt.Errorf("pubmap.backend must be \"memory\" or \"redis\"")
	}
	if cfg.PubMap.Backend == "redis" && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for the redis pubmap backend")
	}

	if cfg.Archive.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when the archive is enabled")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when the archive is enabled")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required when the archive is enabled")
		}
	}

	if cfg.Form.ReasonMinLength > cfg.Form.ReasonMaxLength {
		return fmt.Errorf("form.reason_min_length exceeds form.reason_max_length")
	}
	if cfg.Form.ExperienceMinLength > cfg.Form.ExperienceMaxLength {
		return fmt.Errorf("form.experience_min_length exceeds form.experience_max_length")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

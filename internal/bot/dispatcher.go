// internal/bot/dispatcher.go
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/conversation"
	"intake-bot/internal/messages"
	"intake-bot/internal/models"
	"intake-bot/internal/relay"
	"intake-bot/internal/router"
	"intake-bot/pkg/registry"
)

// BroadcastCallbackPrefix marks broadcast type selection button payloads.
const BroadcastCallbackPrefix = "broadcast:"

const (
	kindCommand  = "command"
	kindCallback = "callback"
	kindMessage  = "message"
)

// ==========================
// Dependencies
// ==========================

// Transport is the outbound surface the dispatcher needs.
type Transport interface {
	SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error)
	EditMessage(ctx context.Context, edit models.MessageEdit) error
	AnswerCallback(ctx context.Context, ans models.CallbackAnswer) error
}

// Conversation is the applicant intake form.
type Conversation interface {
	Start(ctx context.Context, user models.User, chatID int64) error
	Cancel(ctx context.Context, user models.User, chatID int64) error
	HandleTeamSelect(ctx context.Context, callback *models.CallbackQuery) error
	HandleGender(ctx context.Context, callback *models.CallbackQuery) error
	HandleText(ctx context.Context, msg *models.Message) (bool, error)
}

// DecisionRouter resolves accept and reject button presses.
type DecisionRouter interface {
	Decide(ctx context.Context, callback *models.CallbackQuery) error
}

// Bridge is the live relay between applicants and the review channel.
type Bridge interface {
	HandleReviewerReply(ctx context.Context, msg *models.Message) (bool, error)
	ForwardApplicantMessage(ctx context.Context, msg *models.Message) (bool, error)
	End(ctx context.Context, callback *models.CallbackQuery) error
}

// ApplicationStore is the store surface behind the command handlers.
type ApplicationStore interface {
	UserStatus(userID int64) (*models.UserStatus, bool)
	Statistics() models.Stats
	Ban(userID int64) (bool, error)
	Unban(userID int64) (bool, error)
	ClearAll() error
	DeleteApplication(id string) (bool, error)
}

// ==========================
// Dispatcher
// ==========================

// Options collects the dispatcher dependencies.
type Options struct {
	AdminGroupID int64
	Transport    Transport
	Conversation Conversation
	Decisions    DecisionRouter
	Bridge       Bridge
	Fanout       Fanout
	Store        ApplicationStore
	Teams        *registry.TeamRegistry
	Logger       logger.Logger
}

// Dispatcher routes inbound updates to the component that owns them. One
// update is handled at a time per originating user; unrelated users proceed
// concurrently through DispatchBatch lanes.
type Dispatcher struct {
	adminGroupID int64
	transport    Transport
	conversation Conversation
	decisions    DecisionRouter
	bridge       Bridge
	fanout       Fanout
	store        ApplicationStore
	teams        *registry.TeamRegistry
	errHandler   *apperrors.Handler
	logger       logger.Logger

	pendingMu         sync.Mutex
	pendingBroadcasts map[int64]broadcastMode

	// broadcastWait is released when background fan-outs finish.
	broadcastWait sync.WaitGroup
}

// NewDispatcher builds the dispatch layer.
func NewDispatcher(opts Options) *Dispatcher {
	log := opts.Logger.With(map[string]interface{}{"component": "dispatcher"})
	return &Dispatcher{
		adminGroupID:      opts.AdminGroupID,
		transport:         opts.Transport,
		conversation:      opts.Conversation,
		decisions:         opts.Decisions,
		bridge:            opts.Bridge,
		fanout:            opts.Fanout,
		store:             opts.Store,
		teams:             opts.Teams,
		errHandler:        apperrors.NewHandler(log, messages.Get(messages.Error)),
		logger:            log,
		pendingBroadcasts: make(map[int64]broadcastMode),
	}
}

// DispatchBatch processes one long-poll batch. Updates are grouped by
// originating user and each lane runs in order, so a user's second message
// can never overtake their first.
func (d *Dispatcher) DispatchBatch(ctx context.Context, updates []models.Update) {
	if len(updates) == 0 {
		return
	}

	lanes := make(map[int64][]models.Update)
	order := make([]int64, 0, len(updates))
	for _, upd := range updates {
		key := actorID(upd)
		if _, seen := lanes[key]; !seen {
			order = append(order, key)
		}
		lanes[key] = append(lanes[key], upd)
	}

	var wg sync.WaitGroup
	for _, key := range order {
		lane := lanes[key]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, upd := range lane {
				d.Dispatch(ctx, upd)
			}
		}()
	}
	wg.Wait()
}

// Dispatch handles a single update. Panics are contained here so one
// poisoned update cannot take the poll loop down.
func (d *Dispatcher) Dispatch(ctx context.Context, upd models.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("recovered from panic while dispatching", map[string]interface{}{
				"updateId": upd.ID,
				"panic":    fmt.Sprintf("%v", r),
			})
			d.failUpdate(ctx, &upd, updateKind(upd), apperrors.NewInternalError(fmt.Errorf("panic: %v", r)))
		}
	}()

	switch {
	case upd.Callback != nil:
		d.dispatchCallback(ctx, &upd, upd.Callback)
	case upd.Message != nil:
		d.dispatchMessage(ctx, &upd, upd.Message)
	}
}

// Wait blocks until background broadcast runs have finished. Called during
// shutdown.
func (d *Dispatcher) Wait() {
	d.broadcastWait.Wait()
}

// ==========================
// Callback routing
// ==========================

func (d *Dispatcher) dispatchCallback(ctx context.Context, upd *models.Update, callback *models.CallbackQuery) {
	metrics.UpdatesProcessed.WithLabelValues(kindCallback).Inc()

	data := callback.Data
	var err error
	switch {
	case strings.HasPrefix(data, conversation.TeamCallbackPrefix):
		err = d.conversation.HandleTeamSelect(ctx, callback)
	case strings.HasPrefix(data, conversation.GenderCallbackPrefix):
		err = d.conversation.HandleGender(ctx, callback)
	case strings.HasPrefix(data, router.AcceptCallbackPrefix), strings.HasPrefix(data, router.RejectCallbackPrefix):
		if !d.fromReviewChannel(callback) {
			d.rejectCallback(ctx, callback)
			return
		}
		err = d.decisions.Decide(ctx, callback)
	case strings.HasPrefix(data, relay.EndCallbackPrefix):
		if !d.fromReviewChannel(callback) {
			d.rejectCallback(ctx, callback)
			return
		}
		err = d.bridge.End(ctx, callback)
	case strings.HasPrefix(data, BroadcastCallbackPrefix):
		if !d.fromReviewChannel(callback) {
			d.rejectCallback(ctx, callback)
			return
		}
		err = d.handleBroadcastChoice(ctx, callback)
	default:
		d.logger.Warn("unroutable callback payload", map[string]interface{}{
			"data":   data,
			"userId": callback.From.ID,
		})
		d.answerCallback(ctx, callback.ID, "")
	}

	if err != nil {
		d.failUpdate(ctx, upd, kindCallback, err)
	}
}

// fromReviewChannel reports whether the pressed button lives in the admin
// group. Buttons forwarded outside it are rejected regardless of who clicks.
func (d *Dispatcher) fromReviewChannel(callback *models.CallbackQuery) bool {
	return callback.Message != nil && callback.Message.Chat.ID == d.adminGroupID
}

// ==========================
// Message routing
// ==========================

func (d *Dispatcher) dispatchMessage(ctx context.Context, upd *models.Update, msg *models.Message) {
	// Only private chats and the review channel are served.
	if msg.Chat.ID != d.adminGroupID && msg.Chat.Type != "" && msg.Chat.Type != "private" {
		return
	}

	if cmd, args, ok := parseCommand(msg.Text); ok {
		metrics.UpdatesProcessed.WithLabelValues(kindCommand).Inc()
		if err := d.handleCommand(ctx, msg, cmd, args); err != nil {
			d.failUpdate(ctx, upd, kindCommand, err)
		}
		return
	}

	metrics.UpdatesProcessed.WithLabelValues(kindMessage).Inc()

	if msg.Chat.ID == d.adminGroupID {
		d.dispatchReviewChannelMessage(ctx, upd, msg)
		return
	}

	// Applicant flow: an active form consumes text first, everything else
	// falls through to the relay.
	if msg.Media == nil {
		handled, err := d.conversation.HandleText(ctx, msg)
		if err != nil {
			d.failUpdate(ctx, upd, kindMessage, err)
			return
		}
		if handled {
			return
		}
	}

	handled, err := d.bridge.ForwardApplicantMessage(ctx, msg)
	if err != nil {
		d.failUpdate(ctx, upd, kindMessage, err)
		return
	}
	if handled {
		return
	}

	d.send(ctx, msg.Chat.ID, messages.Get(messages.Unknown))
}

func (d *Dispatcher) dispatchReviewChannelMessage(ctx context.Context, upd *models.Update, msg *models.Message) {
	if d.consumePendingBroadcast(ctx, msg) {
		return
	}

	handled, err := d.bridge.HandleReviewerReply(ctx, msg)
	if err != nil {
		d.failUpdate(ctx, upd, kindMessage, err)
		return
	}
	if !handled {
		d.logger.Debug("review channel chatter ignored", map[string]interface{}{
			"messageId": msg.ID,
		})
	}
}

// ==========================
// Shared plumbing
// ==========================

func (d *Dispatcher) failUpdate(ctx context.Context, upd *models.Update, kind string, err error) {
	stdErr := d.errHandler.HandleUpdateError(ctx, d.transport, upd, err)
	metrics.UpdatesFailed.WithLabelValues(kind, string(stdErr.Code)).Inc()
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) {
	if _, err := d.transport.SendMessage(ctx, models.OutboundMessage{ChatID: chatID, Text: text}); err != nil {
		d.logger.Error("failed to send message", map[string]interface{}{
			"chatId": chatID,
			"error":  err.Error(),
		})
	}
}

func (d *Dispatcher) answerCallback(ctx context.Context, callbackID, text string) {
	err := d.transport.AnswerCallback(ctx, models.CallbackAnswer{CallbackID: callbackID, Text: text})
	if err != nil {
		d.logger.Debug("failed to answer callback", map[string]interface{}{
			"callbackId": callbackID,
			"error":      err.Error(),
		})
	}
}

func actorID(upd models.Update) int64 {
	switch {
	case upd.Callback != nil:
		return upd.Callback.From.ID
	case upd.Message != nil:
		return upd.Message.From.ID
	}
	return 0
}

func updateKind(upd models.Update) string {
	switch {
	case upd.Callback != nil:
		return kindCallback
	case upd.Message != nil && strings.HasPrefix(strings.TrimSpace(upd.Message.Text), "/"):
		return kindCommand
	}
	return kindMessage
}

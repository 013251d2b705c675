// internal/relay/relay.go
package relay

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/messages"
	"intake-bot/internal/models"
	"intake-bot/internal/router"
)

// EndCallbackPrefix is carried by the end-chat button attached to forwarded
// applicant messages.
const EndCallbackPrefix = "end:"

// Relay forward directions, used as metric labels.
const (
	directionToApplicant = "to_applicant"
	directionToReview    = "to_review"
)

// Transport delivers relayed messages on both sides of the bridge.
type Transport interface {
	SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error)
	EditMessage(ctx context.Context, edit models.MessageEdit) error
	AnswerCallback(ctx context.Context, answer models.CallbackAnswer) error
}

// ApplicantDirectory answers whether a sender has ever applied. Only
// applicants may reach the review channel through the relay.
type ApplicantDirectory interface {
	UserRecord(userID int64) (models.UserRecord, bool)
}

// ChatSession is one live applicant-reviewer bridge. A session is opened by
// the first reviewer reply and closed by the end-chat button; a later reply
// reopens it.
type ChatSession struct {
	ApplicantID  int64
	ReviewerID   int64
	ReviewerName string
	Active       bool
	StartedAt    time.Time
	LastActivity time.Time
}

// Relay bridges messages between applicants and the review channel. Reviewer
// replies to tracked messages reach the applicant; applicant messages reach
// the review channel with an end-chat button attached.
type Relay struct {
	adminGroupID  int64
	mediaMaxBytes int64
	transport     Transport
	pubmap        router.PubMap
	directory     ApplicantDirectory
	logger        logger.Logger
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[int64]*ChatSession
}

func New(
	adminGroupID int64,
	mediaMaxBytes int64,
	transport Transport,
	pubmap router.PubMap,
	directory ApplicantDirectory,
	log logger.Logger,
) *Relay {
	return &Relay{
		adminGroupID:  adminGroupID,
		mediaMaxBytes: mediaMaxBytes,
		transport:     transport,
		pubmap:        pubmap,
		directory:     directory,
		logger:        log.With(map[string]interface{}{"component": "relay"}),
		now:           time.Now,
		sessions:      make(map[int64]*ChatSession),
	}
}

// ActiveSession returns the live bridge for an applicant, if any.
func (r *Relay) ActiveSession(applicantID int64) (ChatSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[applicantID]
	if !ok {
		return ChatSession{}, false
	}
	return *session, true
}

// ==========================
// Reviewer to applicant
// ==========================

// HandleReviewerReply forwards a review-channel reply to the applicant the
// replied-to message concerns. The boolean reports whether the message was a
// tracked reply; untracked channel chatter is left alone.
func (r *Relay) HandleReviewerReply(ctx context.Context, msg *models.Message) (bool, error) {
	if msg.ReplyToID == 0 {
		return false, nil
	}

	applicantID, ok, err := r.pubmap.Get(ctx, msg.ReplyToID)
	if err != nil {
		r.logger.WithError(err).Error("failed to resolve reply target", map[string]interface{}{
			"reply_to_id": msg.ReplyToID,
		})
		return false, nil
	}
	if !ok {
		return false, nil
	}

	r.openSession(applicantID, msg.From)

	if msg.Media != nil && r.oversized(msg.Media) {
		r.sendToReviewChannel(ctx, messages.Render(messages.AdminMediaError, map[string]string{
			"media_type": messages.MediaTypeName(string(msg.Media.Kind)),
		}))
		return true, nil
	}

	out := models.OutboundMessage{ChatID: applicantID}
	if msg.Media != nil {
		out.Media = &models.MediaRef{
			Kind:    msg.Media.Kind,
			FileID:  msg.Media.FileID,
			Caption: r.replyText(msg.Media.Caption),
		}
	} else {
		out.Text = r.replyText(msg.Text)
	}

	if _, err := r.transport.SendMessage(ctx, out); err != nil {
		r.logger.WithError(err).Error("failed to forward reviewer reply", map[string]interface{}{
			"applicant_id": applicantID,
		})
		r.sendToReviewChannel(ctx, messages.Get(messages.RelayReplyFailed))
		return true, nil
	}

	metrics.RelayForwards.WithLabelValues(directionToApplicant).Inc()

	ack := messages.Get(messages.RelayReplySent)
	if msg.Media != nil {
		ack = messages.Render(messages.AdminMediaSent, map[string]string{
			"media_type": messages.MediaTypeName(string(msg.Media.Kind)),
		})
	}
	r.sendToReviewChannel(ctx, ack)

	r.logger.Info("reviewer reply forwarded", map[string]interface{}{
		"applicant_id": applicantID,
		"reviewer_id":  msg.From.ID,
		"media":        msg.Media != nil,
	})
	return true, nil
}

func (r *Relay) replyText(text string) string {
	return messages.Render(messages.RelayReply, map[string]string{
		"text":      text,
		"timestamp": models.FormatDisplayTime(r.now()),
	})
}

// ==========================
// Applicant to review channel
// ==========================

// ForwardApplicantMessage forwards an applicant's message to the review
// channel. Only applicants with a live bridge or at least one submitted
// application are eligible; for everyone else the message is left to the
// fallback responder.
func (r *Relay) ForwardApplicantMessage(ctx context.Context, msg *models.Message) (bool, error) {
	userID := msg.From.ID
	if !r.eligible(userID) {
		return false, nil
	}

	if msg.Media != nil && r.oversized(msg.Media) {
		r.send(ctx, msg.Chat.ID, messages.Render(messages.MediaError, map[string]string{
			"max_size": strconv.FormatInt(r.mediaMaxBytes/(1024*1024), 10),
		}))
		return true, nil
	}

	forward := r.forwardText(msg)
	out := models.OutboundMessage{
		ChatID:  r.adminGroupID,
		Buttons: endChatKeyboard(userID),
	}
	if msg.Media != nil {
		out.Media = &models.MediaRef{
			Kind:    msg.Media.Kind,
			FileID:  msg.Media.FileID,
			Caption: forward,
		}
	} else {
		out.Text = forward
	}

	messageID, err := r.transport.SendMessage(ctx, out)
	if err != nil {
		r.logger.WithError(err).Error("failed to forward applicant message", map[string]interface{}{
			"applicant_id": userID,
		})
		r.send(ctx, msg.Chat.ID, messages.Get(messages.UserForwardFail))
		return true, nil
	}

	// Track the forwarded copy so reviewers can reply to it directly.
	if err := r.pubmap.Put(ctx, messageID, userID); err != nil {
		r.logger.WithError(err).Error("failed to record forwarded message", map[string]interface{}{
			"message_id":   messageID,
			"applicant_id": userID,
		})
	}

	r.touchSession(userID)
	metrics.RelayForwards.WithLabelValues(directionToReview).Inc()

	if msg.Media != nil {
		r.send(ctx, msg.Chat.ID, messages.Render(messages.MediaReceived, map[string]string{
			"media_type": messages.MediaTypeName(string(msg.Media.Kind)),
		}))
	} else {
		r.send(ctx, msg.Chat.ID, messages.Get(messages.UserForwardAck))
	}

	r.logger.Info("applicant message forwarded", map[string]interface{}{
		"applicant_id": userID,
		"message_id":   messageID,
		"media":        msg.Media != nil,
	})
	return true, nil
}

func (r *Relay) forwardText(msg *models.Message) string {
	text := msg.Text
	if msg.Media != nil {
		text = msg.Media.Caption
		if text == "" {
			text = messages.MediaTypeName(string(msg.Media.Kind))
		}
	}

	return messages.Render(messages.UserForward, map[string]string{
		"text":          text,
		"user_name":     msg.From.FullName(),
		"username_text": messages.UsernameText(msg.From.Username),
		"user_id":       strconv.FormatInt(msg.From.ID, 10),
		"timestamp":     models.FormatDisplayTime(r.now()),
	})
}

func (r *Relay) eligible(userID int64) bool {
	if session, ok := r.ActiveSession(userID); ok && session.Active {
		return true
	}
	record, ok := r.directory.UserRecord(userID)
	return ok && record.TotalApplications > 0
}

// ==========================
// Ending a bridge
// ==========================

// End closes the bridge for an applicant: the applicant gets a closing
// notice and the pressed message is annotated with who ended the chat.
func (r *Relay) End(ctx context.Context, callback *models.CallbackQuery) error {
	r.answerCallback(ctx, callback.ID)

	applicantID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, EndCallbackPrefix), 10, 64)
	if err != nil {
		r.logger.Warn("malformed end-chat payload", map[string]interface{}{
			"payload": callback.Data,
		})
		return nil
	}

	reviewerName := callback.From.FullName()
	r.closeSession(applicantID)

	r.send(ctx, applicantID, messages.Render(messages.ChatEnded, map[string]string{
		"admin_name": reviewerName,
		"timestamp":  models.FormatDisplayTime(r.now()),
	}))

	if callback.Message != nil {
		if err := r.transport.EditMessage(ctx, models.MessageEdit{
			ChatID:    callback.Message.Chat.ID,
			MessageID: callback.Message.ID,
			Text: callback.Message.Text + "\n\n" + messages.Render(messages.ChatEndedAudit, map[string]string{
				"admin_name": reviewerName,
			}),
		}); err != nil {
			r.logger.WithError(err).Error("failed to annotate ended chat", map[string]interface{}{
				"message_id": callback.Message.ID,
			})
		}
	}

	r.logger.Info("chat ended", map[string]interface{}{
		"applicant_id": applicantID,
		"reviewer_id":  callback.From.ID,
	})
	return nil
}

// ==========================
// Session bookkeeping
// ==========================

func (r *Relay) openSession(applicantID int64, reviewer models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	session, ok := r.sessions[applicantID]
	if !ok {
		r.sessions[applicantID] = &ChatSession{
			ApplicantID:  applicantID,
			ReviewerID:   reviewer.ID,
			ReviewerName: reviewer.FullName(),
			Active:       true,
			StartedAt:    now,
			LastActivity: now,
		}
		return
	}

	session.ReviewerID = reviewer.ID
	session.ReviewerName = reviewer.FullName()
	session.Active = true
	session.LastActivity = now
}

func (r *Relay) touchSession(applicantID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[applicantID]; ok {
		session.LastActivity = r.now()
	}
}

func (r *Relay) closeSession(applicantID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[applicantID]; ok {
		session.Active = false
		session.LastActivity = r.now()
	}
}

// ==========================
// Delivery helpers
// ==========================

func (r *Relay) oversized(media *models.MediaAttachment) bool {
	return r.mediaMaxBytes > 0 && media.FileSize > r.mediaMaxBytes
}

func endChatKeyboard(applicantID int64) [][]models.InlineButton {
	return [][]models.InlineButton{{
		{Text: messages.ButtonEndChat, Data: EndCallbackPrefix + strconv.FormatInt(applicantID, 10)},
	}}
}

func (r *Relay) send(ctx context.Context, chatID int64, text string) {
	if _, err := r.transport.SendMessage(ctx, models.OutboundMessage{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		r.logger.WithError(err).Error("failed to send relay notice", map[string]interface{}{
			"chat_id": chatID,
		})
	}
}

func (r *Relay) sendToReviewChannel(ctx context.Context, text string) {
	r.send(ctx, r.adminGroupID, text)
}

func (r *Relay) answerCallback(ctx context.Context, callbackID string) {
	if err := r.transport.AnswerCallback(ctx, models.CallbackAnswer{
		CallbackID: callbackID,
	}); err != nil {
		r.logger.Debug("failed to answer callback", map[string]interface{}{
			"callback_id": callbackID,
			"error":       err.Error(),
		})
	}
}

// internal/common/errors/handler.go
package errors

import (
	"context"
	"time"

	"intake-bot/internal/models"
)

// Handler is the dispatch-boundary error handler. Every inbound update that
// fails ends up here: the error is normalized to a StandardError, logged with
// its update context, and the initiating party receives the generic failure
// notice.
type Handler struct {
	logger       Logger
	fallbackText string
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// Notifier is the slice of the transport the handler needs to deliver the
// fallback notice.
type Notifier interface {
	SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error)
	AnswerCallback(ctx context.Context, ans models.CallbackAnswer) error
}

// NewHandler builds a Handler. fallbackText is the generic failure copy shown
// to users; the handler stays copy-agnostic.
func NewHandler(logger Logger, fallbackText string) *Handler {
	return &Handler{logger: logger, fallbackText: fallbackText}
}

// HandleUpdateError normalizes, logs, and answers the failed update. Notice
// delivery failures are logged and swallowed: the handler is the last stop.
func (h *Handler) HandleUpdateError(ctx context.Context, notifier Notifier, upd *models.Update, err error) *StandardError {
	stdErr := h.normalizeError(err)

	h.logError(upd, stdErr)

	if notifier == nil || upd == nil {
		return stdErr
	}

	switch {
	case upd.Callback != nil:
		ans := models.CallbackAnswer{
			CallbackID: upd.Callback.ID,
			Text:       h.fallbackText,
			ShowAlert:  true,
		}
		if sendErr := notifier.AnswerCallback(ctx, ans); sendErr != nil {
			h.logger.Error("failed to answer callback after error", map[string]interface{}{
				"callbackId": upd.Callback.ID,
				"error":      sendErr.Error(),
			})
		}
	case upd.Message != nil:
		msg := models.OutboundMessage{
			ChatID: upd.Message.Chat.ID,
			Text:   h.fallbackText,
		}
		if _, sendErr := notifier.SendMessage(ctx, msg); sendErr != nil {
			h.logger.Error("failed to deliver failure notice", map[string]interface{}{
				"chatId": upd.Message.Chat.ID,
				"error":  sendErr.Error(),
			})
		}
	}

	return stdErr
}

// normalizeError ensures we always have a StandardError.
func (h *Handler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *Handler) logError(upd *models.Update, stdErr *StandardError) {
	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if upd != nil {
		fields["updateId"] = upd.ID
		if upd.Message != nil {
			fields["chatId"] = upd.Message.Chat.ID
			fields["userId"] = upd.Message.From.ID
		}
		if upd.Callback != nil {
			fields["callbackId"] = upd.Callback.ID
			fields["userId"] = upd.Callback.From.ID
		}
	}
	h.logger.Error("update processing failed", fields)
}

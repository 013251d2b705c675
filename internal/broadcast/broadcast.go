// internal/broadcast/broadcast.go
package broadcast

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/messages"
	"intake-bot/internal/models"
)

var (
	ErrMessageTooShort = errors.New("BROADCAST_MESSAGE_TOO_SHORT")
	ErrNoRecipients    = errors.New("BROADCAST_NO_RECIPIENTS")
)

// Delivery outcome labels.
const (
	outcomeSent   = "sent"
	outcomeFailed = "failed"
)

// Sender delivers one broadcast copy.
type Sender interface {
	SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error)
}

// RecipientSource lists every known applicant ID.
type RecipientSource interface {
	UserIDs() []int64
}

// Content is one broadcast payload. PhotoFileID, when set, turns the run
// into a photo broadcast with the text as caption.
type Content struct {
	Text        string
	PhotoFileID string
}

// Broadcaster fans a message out to every known applicant, sequentially and
// throttled. Individual delivery failures are counted and skipped; one
// blocked applicant never stops the run.
type Broadcaster struct {
	config config.BroadcastConfig
	sender Sender
	source RecipientSource
	logger logger.Logger
	now    func() time.Time
}

func New(cfg config.BroadcastConfig, sender Sender, source RecipientSource, log logger.Logger) *Broadcaster {
	return &Broadcaster{
		config: cfg,
		sender: sender,
		source: source,
		logger: log.With(map[string]interface{}{"component": "broadcast"}),
		now:    time.Now,
	}
}

// Run delivers the content to every recipient and reports the outcome. A
// cancelled context stops the run and returns the partial report.
func (b *Broadcaster) Run(ctx context.Context, content Content) (models.BroadcastReport, error) {
	report := models.BroadcastReport{
		RunID:     uuid.New().String(),
		Timestamp: models.FormatDisplayTime(b.now()),
	}

	// Photo broadcasts may carry an empty caption; the length floor applies
	// to text-only runs.
	if content.PhotoFileID == "" {
		if utf8.RuneCountInString(strings.TrimSpace(content.Text)) < b.config.MinLength {
			return report, ErrMessageTooShort
		}
	}

	recipients := b.source.UserIDs()
	if len(recipients) == 0 {
		return report, ErrNoRecipients
	}

	body := messages.Render(messages.BroadcastHeader, map[string]string{
		"text":      content.Text,
		"timestamp": report.Timestamp,
	})

	b.logger.Info("broadcast started", map[string]interface{}{
		"run_id":     report.RunID,
		"recipients": len(recipients),
		"photo":      content.PhotoFileID != "",
	})

	throttle := time.Duration(b.config.Throttle) * time.Millisecond
	for i, recipient := range recipients {
		if i > 0 && throttle > 0 {
			select {
			case <-time.After(throttle):
			case <-ctx.Done():
				b.logger.Warn("broadcast cancelled", map[string]interface{}{
					"run_id":    report.RunID,
					"delivered": report.Sent,
				})
				return report, ctx.Err()
			}
		}

		if err := b.deliver(ctx, recipient, body, content.PhotoFileID); err != nil {
			report.Failed++
			metrics.BroadcastDeliveries.WithLabelValues(outcomeFailed).Inc()
			b.logger.Warn("broadcast delivery failed", map[string]interface{}{
				"run_id":    report.RunID,
				"recipient": recipient,
				"error":     err.Error(),
			})
			continue
		}

		report.Sent++
		metrics.BroadcastDeliveries.WithLabelValues(outcomeSent).Inc()
	}

	b.logger.Info("broadcast completed", map[string]interface{}{
		"run_id": report.RunID,
		"sent":   report.Sent,
		"failed": report.Failed,
	})
	return report, nil
}

func (b *Broadcaster) deliver(ctx context.Context, recipient int64, body, photoFileID string) error {
	out := models.OutboundMessage{ChatID: recipient}
	if photoFileID != "" {
		out.Media = &models.MediaRef{
			Kind:    models.MediaPhoto,
			FileID:  photoFileID,
			Caption: body,
		}
	} else {
		out.Text = body
	}

	_, err := b.sender.SendMessage(ctx, out)
	return err
}

// internal/router/router.go
package router

import (
	"context"
	"strconv"
	"strings"
	"time"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/messages"
	"intake-bot/internal/models"
	"intake-bot/pkg/registry"
)

// Decision callback payloads.
const (
	AcceptCallbackPrefix = "accept:"
	RejectCallbackPrefix = "reject:"
)

// Transport delivers messages to the review channel and to applicants.
type Transport interface {
	SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error)
	EditMessage(ctx context.Context, edit models.MessageEdit) error
	AnswerCallback(ctx context.Context, answer models.CallbackAnswer) error
}

// DecisionStore persists reviewer verdicts.
type DecisionStore interface {
	RecordDecision(userID int64, teamID, status, decidedBy string) (models.Application, error)
}

// Archiver receives decided applications for long-term storage. Optional.
type Archiver interface {
	ArchiveDecision(ctx context.Context, app models.Application) error
}

// Router publishes submitted applications to the review channel and turns
// reviewer button presses into recorded, delivered decisions.
type Router struct {
	adminGroupID int64
	teams        *registry.TeamRegistry
	transport    Transport
	pubmap       PubMap
	store        DecisionStore
	archiver     Archiver
	logger       logger.Logger
	now          func() time.Time
}

func NewRouter(
	adminGroupID int64,
	teams *registry.TeamRegistry,
	transport Transport,
	pubmap PubMap,
	store DecisionStore,
	archiver Archiver,
	log logger.Logger,
) *Router {
	return &Router{
		adminGroupID: adminGroupID,
		teams:        teams,
		transport:    transport,
		pubmap:       pubmap,
		store:        store,
		archiver:     archiver,
		logger:       log.With(map[string]interface{}{"component": "router"}),
		now:          time.Now,
	}
}

// ==========================
// Publication
// ==========================

// Publish posts an application to the review channel with decision buttons
// and records the publication so later button presses and replies route back
// to the applicant.
func (r *Router) Publish(ctx context.Context, app models.Application) error {
	applicantID := app.UserInfo.UserID

	messageID, err := r.transport.SendMessage(ctx, models.OutboundMessage{
		ChatID:  r.adminGroupID,
		Text:    r.notificationText(app),
		Buttons: decisionKeyboard(applicantID, app.SelectedTeam),
	})
	if err != nil {
		return apperrors.NewPublicationFailedError(err)
	}

	if err := r.pubmap.Put(ctx, messageID, applicantID); err != nil {
		// The publication itself succeeded; only reply routing degrades.
		r.logger.WithError(err).Error("failed to record publication", map[string]interface{}{
			"message_id":   messageID,
			"applicant_id": applicantID,
		})
	}

	r.logger.Info("application published", map[string]interface{}{
		"application_id": app.ID,
		"applicant_id":   applicantID,
		"message_id":     messageID,
	})
	return nil
}

func (r *Router) notificationText(app models.Application) string {
	gender := messages.GenderName(app.Gender)
	if gender == "" {
		gender = messages.UnspecifiedPlaceholder
	}

	whatsappLine := ""
	if app.Whatsapp != "" {
		whatsappLine = "\n📱 <b>واتساب:</b> " + app.Whatsapp + "\n"
	}

	return messages.Render(messages.Notification, map[string]string{
		"user_name":     app.UserInfo.FullName(),
		"username_text": messages.UsernameText(app.UserInfo.Username),
		"user_id":       strconv.FormatInt(app.UserInfo.UserID, 10),
		"team_name":     r.teamName(app.SelectedTeam, app.TeamName),
		"gender":        gender,
		"reason":        app.Reason,
		"experience":    app.Experience,
		"whatsapp_line": whatsappLine,
		"timestamp":     models.DisplayTimestamp(app.Timestamp),
	})
}

func decisionKeyboard(applicantID int64, teamID string) [][]models.InlineButton {
	suffix := strconv.FormatInt(applicantID, 10) + ":" + teamID
	return [][]models.InlineButton{{
		{Text: messages.ButtonAccept, Data: AcceptCallbackPrefix + suffix},
		{Text: messages.ButtonReject, Data: RejectCallbackPrefix + suffix},
	}}
}

// ==========================
// Decisions
// ==========================

// Decide processes an accept or reject button press: the verdict is recorded
// on the store, the applicant is notified, and the review message is edited
// into an audit line. Applicant delivery failure does not abort the audit
// trail.
func (r *Router) Decide(ctx context.Context, callback *models.CallbackQuery) error {
	verdict, applicantID, teamID, err := parseDecisionPayload(callback.Data)
	if err != nil {
		r.answerCallback(ctx, callback.ID, messages.Get(messages.DecisionError), true)
		return err
	}

	r.answerCallback(ctx, callback.ID, "", false)

	status := models.StatusAccepted
	if verdict == "reject" {
		status = models.StatusRejected
	}

	reviewer := callback.From.FullName()
	decided, err := r.store.RecordDecision(applicantID, teamID, status, reviewer)
	recorded := err == nil
	if err != nil {
		// The buttons can outlive the record, e.g. after /clear. The verdict
		// is still delivered so the applicant is not left waiting.
		r.logger.WithError(err).Warn("decision without matching application", map[string]interface{}{
			"applicant_id": applicantID,
			"team_id":      teamID,
			"verdict":      verdict,
		})
	}

	teamName := r.teamName(teamID, decided.TeamName)
	timestamp := models.FormatDisplayTime(r.now())

	key := messages.Accepted
	confirmation := messages.AcceptConfirmation
	if status == models.StatusRejected {
		key = messages.Rejected
		confirmation = messages.RejectConfirmation
	}

	if _, err := r.transport.SendMessage(ctx, models.OutboundMessage{
		ChatID: applicantID,
		Text: messages.Render(key, map[string]string{
			"team_name":  teamName,
			"admin_name": reviewer,
			"timestamp":  timestamp,
		}),
	}); err != nil {
		r.logger.WithError(err).Error("failed to deliver decision", map[string]interface{}{
			"applicant_id": applicantID,
			"verdict":      verdict,
		})
	}

	if callback.Message != nil {
		if err := r.transport.EditMessage(ctx, models.MessageEdit{
			ChatID:    callback.Message.Chat.ID,
			MessageID: callback.Message.ID,
			Text:      callback.Message.Text + "\n\n" + confirmation,
		}); err != nil {
			r.logger.WithError(err).Error("failed to edit review message", map[string]interface{}{
				"message_id": callback.Message.ID,
			})
		}
	}

	if recorded && r.archiver != nil {
		if err := r.archiver.ArchiveDecision(ctx, decided); err != nil {
			r.logger.WithError(err).Error("failed to archive decision", map[string]interface{}{
				"application_id": decided.ID,
			})
		}
	}

	r.logger.Info("decision processed", map[string]interface{}{
		"applicant_id": applicantID,
		"team_id":      teamID,
		"verdict":      verdict,
		"reviewer":     reviewer,
		"recorded":     recorded,
	})
	return nil
}

// parseDecisionPayload splits "accept:{userID}:{teamID}". Team IDs cannot
// contain ':' so a plain split is unambiguous.
func parseDecisionPayload(data string) (verdict string, applicantID int64, teamID string, err error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", 0, "", apperrors.NewDecisionMalformedError(data)
	}

	verdict = parts[0]
	if verdict != "accept" && verdict != "reject" {
		return "", 0, "", apperrors.NewDecisionMalformedError(data)
	}

	applicantID, parseErr := strconv.ParseInt(parts[1], 10, 64)
	if parseErr != nil {
		return "", 0, "", apperrors.NewDecisionMalformedError(data)
	}

	return verdict, applicantID, parts[2], nil
}

func (r *Router) teamName(teamID, snapshot string) string {
	if name, ok := r.teams.DisplayName(teamID); ok {
		return name
	}
	if snapshot != "" {
		return snapshot
	}
	return messages.UnknownTeamPlaceholder
}

func (r *Router) answerCallback(ctx context.Context, callbackID, text string, alert bool) {
	if err := r.transport.AnswerCallback(ctx, models.CallbackAnswer{
		CallbackID: callbackID,
		Text:       text,
		ShowAlert:  alert,
	}); err != nil {
		r.logger.Debug("failed to answer callback", map[string]interface{}{
			"callback_id": callbackID,
			"error":       err.Error(),
		})
	}
}

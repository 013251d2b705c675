// internal/conversation/engine.go
package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"intake-bot/internal/common/config"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/messages"
	"intake-bot/internal/models"
	"intake-bot/pkg/registry"
)

// Callback payloads carried by the inline keyboards this engine attaches.
const (
	TeamCallbackPrefix   = "team:"
	GenderCallbackPrefix = "gender:"

	GenderMale   = "male"
	GenderFemale = "female"
)

// Notifier delivers prompts to the applicant's chat.
type Notifier interface {
	SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error)
	EditMessage(ctx context.Context, edit models.MessageEdit) error
	AnswerCallback(ctx context.Context, answer models.CallbackAnswer) error
}

// ApplicationStore is the slice of the store the form needs.
type ApplicationStore interface {
	IsBanned(userID int64) bool
	CanReapply(userID int64, teamID string) bool
	SaveApplication(app models.Application) (models.Application, error)
}

// Publisher hands a stored application to the review channel.
type Publisher interface {
	Publish(ctx context.Context, app models.Application) error
}

// Engine drives the intake form. One applicant moves through team selection,
// gender, reason, experience and, when the account has no public username, a
// WhatsApp contact number. Completion stores the application and publishes
// it for review.
type Engine struct {
	config    config.FormConfig
	teams     *registry.TeamRegistry
	sessions  *Registry
	store     ApplicationStore
	notifier  Notifier
	publisher Publisher
	logger    logger.Logger
	now       func() time.Time
}

func NewEngine(
	cfg config.FormConfig,
	teams *registry.TeamRegistry,
	store ApplicationStore,
	notifier Notifier,
	publisher Publisher,
	log logger.Logger,
) *Engine {
	return &Engine{
		config:    cfg,
		teams:     teams,
		sessions:  NewRegistry(),
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		logger:    log.With(map[string]interface{}{"component": "conversation"}),
		now:       time.Now,
	}
}

// Sessions exposes the session registry for dispatch-level checks.
func (e *Engine) Sessions() *Registry {
	return e.sessions
}

// ==========================
// Entry and cancellation
// ==========================

// Start opens (or restarts) the form for an applicant. An existing draft is
// abandoned.
func (e *Engine) Start(ctx context.Context, user models.User, chatID int64) error {
	if e.store.IsBanned(user.ID) {
		return e.send(ctx, chatID, messages.Get(messages.Banned), nil)
	}

	e.sessions.Delete(user.ID)

	if _, err := e.notifier.SendMessage(ctx, models.OutboundMessage{
		ChatID:  chatID,
		Text:    messages.Get(messages.Welcome),
		Buttons: e.teamKeyboard(),
	}); err != nil {
		return apperrors.NewDeliveryFailedError(chatID, err)
	}

	now := e.now()
	e.sessions.Put(&Session{
		UserID:    user.ID,
		ChatID:    chatID,
		Applicant: applicantFromUser(user),
		State:     StateSelectingTeam,
		StartedAt: now,
		UpdatedAt: now,
	})

	e.logger.Info("conversation started", map[string]interface{}{
		"user_id": user.ID,
	})
	return nil
}

// Cancel abandons any draft and confirms. Cancelling without a draft still
// confirms so the command is idempotent.
func (e *Engine) Cancel(ctx context.Context, user models.User, chatID int64) error {
	e.sessions.Delete(user.ID)
	return e.send(ctx, chatID, messages.Get(messages.Cancel), nil)
}

// ==========================
// Button steps
// ==========================

// HandleTeamSelect processes a team button press. The pressed message is
// edited into the next question so the keyboard cannot be pressed twice.
func (e *Engine) HandleTeamSelect(ctx context.Context, callback *models.CallbackQuery) error {
	e.answerCallback(ctx, callback.ID, "")

	teamID := strings.TrimPrefix(callback.Data, TeamCallbackPrefix)
	user := callback.From

	teamName, known := e.teams.DisplayName(teamID)
	if !known {
		e.logger.Warn("team selection for unknown team", map[string]interface{}{
			"user_id": user.ID,
			"team_id": teamID,
		})
		return nil
	}

	if e.store.IsBanned(user.ID) {
		return e.edit(ctx, callback, messages.Get(messages.Banned), nil)
	}

	if !e.store.CanReapply(user.ID, teamID) {
		e.sessions.Delete(user.ID)
		return e.edit(ctx, callback, messages.Render(messages.AlreadyApplied, map[string]string{
			"team_name": teamName,
		}), nil)
	}

	now := e.now()
	session := &Session{
		UserID:    user.ID,
		ChatID:    callbackChatID(callback),
		Applicant: applicantFromUser(user),
		State:     StateAwaitingGender,
		TeamID:    teamID,
		TeamName:  teamName,
		StartedAt: now,
		UpdatedAt: now,
	}

	if err := e.edit(ctx, callback, messages.Render(messages.AskGender, map[string]string{
		"team_name": teamName,
	}), genderKeyboard()); err != nil {
		return err
	}

	e.sessions.Put(session)
	e.logger.Info("team selected", map[string]interface{}{
		"user_id": user.ID,
		"team_id": teamID,
	})
	return nil
}

// HandleGender processes a gender button press. Presses without a live
// session (expired draft, double tap) are acknowledged and dropped.
func (e *Engine) HandleGender(ctx context.Context, callback *models.CallbackQuery) error {
	e.answerCallback(ctx, callback.ID, "")

	gender := strings.TrimPrefix(callback.Data, GenderCallbackPrefix)
	if gender != GenderMale && gender != GenderFemale {
		e.logger.Warn("malformed gender payload", map[string]interface{}{
			"user_id": callback.From.ID,
			"payload": callback.Data,
		})
		return nil
	}

	session, ok := e.sessions.Get(callback.From.ID)
	if !ok || session.State != StateAwaitingGender {
		e.logger.Debug("stale gender callback", map[string]interface{}{
			"user_id": callback.From.ID,
		})
		return nil
	}

	session.Gender = gender
	session.State = StateAwaitingReason
	session.Touch(e.now())

	return e.edit(ctx, callback, messages.Render(messages.AskReason, map[string]string{
		"team_name": session.TeamName,
	}), nil)
}

// ==========================
// Text steps
// ==========================

// HandleText advances the form with a free-text answer. The boolean reports
// whether the message belonged to the form; unconsumed messages fall through
// to the relay.
func (e *Engine) HandleText(ctx context.Context, msg *models.Message) (bool, error) {
	session, ok := e.sessions.Get(msg.From.ID)
	if !ok || session.State == StateSelectingTeam {
		return false, nil
	}

	switch session.State {
	case StateAwaitingGender:
		// Gender is buttons only.
		return true, e.send(ctx, session.ChatID, messages.Get(messages.GenderInvalid), genderKeyboard())
	case StateAwaitingReason:
		return true, e.handleReason(ctx, session, msg.Text)
	case StateAwaitingExperience:
		return true, e.handleExperience(ctx, session, msg.Text)
	case StateAwaitingWhatsapp:
		return true, e.handleWhatsapp(ctx, session, msg.Text)
	default:
		return false, nil
	}
}

func (e *Engine) handleReason(ctx context.Context, session *Session, text string) error {
	length := AnswerLength(text)
	if length < e.config.ReasonMinLength {
		return e.send(ctx, session.ChatID, messages.Render(messages.ReasonTooShort, map[string]string{
			"min":       strconv.Itoa(e.config.ReasonMinLength),
			"team_name": session.TeamName,
		}), nil)
	}
	if length > e.config.ReasonMaxLength {
		return e.send(ctx, session.ChatID, messages.Render(messages.ReasonTooLong, map[string]string{
			"max": strconv.Itoa(e.config.ReasonMaxLength),
		}), nil)
	}

	session.Reason = strings.TrimSpace(text)
	session.State = StateAwaitingExperience
	session.Touch(e.now())

	return e.send(ctx, session.ChatID, messages.Render(messages.AskExperience, map[string]string{
		"team_name": session.TeamName,
	}), nil)
}

func (e *Engine) handleExperience(ctx context.Context, session *Session, text string) error {
	length := AnswerLength(text)
	if length < e.config.ExperienceMinLength {
		return e.send(ctx, session.ChatID, messages.Render(messages.ExperienceTooShort, map[string]string{
			"min": strconv.Itoa(e.config.ExperienceMinLength),
		}), nil)
	}
	if length > e.config.ExperienceMaxLength {
		return e.send(ctx, session.ChatID, messages.Render(messages.ExperienceTooLong, map[string]string{
			"max": strconv.Itoa(e.config.ExperienceMaxLength),
		}), nil)
	}

	session.Experience = strings.TrimSpace(text)
	session.Touch(e.now())

	// Accounts without a public username are asked for a contact number,
	// otherwise the reviewer has no way to reach the applicant.
	if !session.Applicant.HasUsername() {
		session.State = StateAwaitingWhatsapp
		return e.send(ctx, session.ChatID, messages.Get(messages.AskWhatsapp), nil)
	}

	return e.complete(ctx, session)
}

func (e *Engine) handleWhatsapp(ctx context.Context, session *Session, text string) error {
	if !ValidWhatsappNumber(text) {
		return e.send(ctx, session.ChatID, messages.Get(messages.WhatsappInvalid), nil)
	}

	session.Whatsapp = NormalizePhone(text)
	session.Touch(e.now())

	return e.complete(ctx, session)
}

// ==========================
// Completion
// ==========================

func (e *Engine) complete(ctx context.Context, session *Session) error {
	app := models.Application{
		UserInfo:     session.Applicant,
		SelectedTeam: session.TeamID,
		TeamName:     session.TeamName,
		Gender:       session.Gender,
		Reason:       session.Reason,
		Experience:   session.Experience,
		Whatsapp:     session.Whatsapp,
		Timestamp:    models.FormatTimestamp(e.now()),
	}

	saved, err := e.store.SaveApplication(app)
	if err != nil {
		e.sessions.Delete(session.UserID)
		if sendErr := e.send(ctx, session.ChatID, messages.Get(messages.SaveFailed), nil); sendErr != nil {
			e.logger.WithError(sendErr).Error("failed to report save failure", map[string]interface{}{
				"user_id": session.UserID,
			})
		}
		return fmt.Errorf("save application: %w", err)
	}

	e.sessions.Delete(session.UserID)

	// The application is durable at this point. A review channel outage must
	// not cost the applicant their submission.
	if err := e.publisher.Publish(ctx, saved); err != nil {
		e.logger.WithError(err).Error("failed to publish application", map[string]interface{}{
			"application_id": saved.ID,
			"user_id":        saved.UserInfo.UserID,
		})
	}

	e.logger.Info("application submitted", map[string]interface{}{
		"application_id": saved.ID,
		"user_id":        saved.UserInfo.UserID,
		"team_id":        saved.SelectedTeam,
	})

	return e.send(ctx, session.ChatID, messages.Render(messages.Submitted, map[string]string{
		"team_name": session.TeamName,
	}), nil)
}

// ==========================
// Keyboards and delivery
// ==========================

// teamKeyboard lays the registry's teams out two buttons per row, in
// registry order.
func (e *Engine) teamKeyboard() [][]models.InlineButton {
	var rows [][]models.InlineButton
	var row []models.InlineButton

	for _, id := range e.teams.IDs() {
		name, _ := e.teams.DisplayName(id)
		row = append(row, models.InlineButton{
			Text: name,
			Data: TeamCallbackPrefix + id,
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func genderKeyboard() [][]models.InlineButton {
	return [][]models.InlineButton{{
		{Text: messages.ButtonGenderMale, Data: GenderCallbackPrefix + GenderMale},
		{Text: messages.ButtonGenderFemale, Data: GenderCallbackPrefix + GenderFemale},
	}}
}

func (e *Engine) send(ctx context.Context, chatID int64, text string, buttons [][]models.InlineButton) error {
	if _, err := e.notifier.SendMessage(ctx, models.OutboundMessage{
		ChatID:  chatID,
		Text:    text,
		Buttons: buttons,
	}); err != nil {
		return apperrors.NewDeliveryFailedError(chatID, err)
	}
	return nil
}

func (e *Engine) edit(ctx context.Context, callback *models.CallbackQuery, text string, buttons [][]models.InlineButton) error {
	if callback.Message == nil {
		return e.send(ctx, callback.From.ID, text, buttons)
	}
	if err := e.notifier.EditMessage(ctx, models.MessageEdit{
		ChatID:    callback.Message.Chat.ID,
		MessageID: callback.Message.ID,
		Text:      text,
		Buttons:   buttons,
	}); err != nil {
		return apperrors.NewDeliveryFailedError(callback.Message.Chat.ID, err)
	}
	return nil
}

func (e *Engine) answerCallback(ctx context.Context, callbackID, text string) {
	if err := e.notifier.AnswerCallback(ctx, models.CallbackAnswer{
		CallbackID: callbackID,
		Text:       text,
	}); err != nil {
		e.logger.Debug("failed to answer callback", map[string]interface{}{
			"callback_id": callbackID,
			"error":       err.Error(),
		})
	}
}

func applicantFromUser(user models.User) models.Applicant {
	return models.Applicant{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
	}
}

func callbackChatID(callback *models.CallbackQuery) int64 {
	if callback.Message != nil {
		return callback.Message.Chat.ID
	}
	return callback.From.ID
}

// internal/router/router_test.go
package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
	"intake-bot/pkg/registry"
)

const testAdminGroupID int64 = -1001234567890

// ==========================
// Fakes
// ==========================

type fakeTransport struct {
	sent      []models.OutboundMessage
	edits     []models.MessageEdit
	answers   []models.CallbackAnswer
	sendErr   error
	nextMsgID int
}

func (f *fakeTransport) SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, msg)
	f.nextMsgID++
	return 900 + f.nextMsgID, nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, edit models.MessageEdit) error {
	f.edits = append(f.edits, edit)
	return nil
}

func (f *fakeTransport) AnswerCallback(ctx context.Context, answer models.CallbackAnswer) error {
	f.answers = append(f.answers, answer)
	return nil
}

type decisionCall struct {
	userID    int64
	teamID    string
	status    string
	decidedBy string
}

type fakeDecisionStore struct {
	calls []decisionCall
	app   models.Application
	err   error
}

func (f *fakeDecisionStore) RecordDecision(userID int64, teamID, status, decidedBy string) (models.Application, error) {
	f.calls = append(f.calls, decisionCall{userID, teamID, status, decidedBy})
	if f.err != nil {
		return models.Application{}, f.err
	}
	app := f.app
	app.Status = status
	app.DecidedBy = decidedBy
	return app, nil
}

type fakeArchiver struct {
	archived []models.Application
	err      error
}

func (f *fakeArchiver) ArchiveDecision(ctx context.Context, app models.Application) error {
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, app)
	return nil
}

// ==========================
// Helpers
// ==========================

func sampleApplication() models.Application {
	return models.Application{
		ID: "111_team_exams_1700000000",
		UserInfo: models.Applicant{
			UserID:    111,
			FirstName: "أحمد",
			LastName:  "علي",
			Username:  "ahmed_ali",
		},
		SelectedTeam: "team_exams",
		TeamName:     "تيم الاختبارات",
		Gender:       "male",
		Reason:       "عايز أساعد الطلاب في المذاكرة",
		Experience:   "خبرة سنتين في التصميم",
		Timestamp:    "2026-08-20T10:00:00Z",
	}
}

func newTestRouter(t *testing.T) (*Router, *fakeTransport, *fakeDecisionStore, *fakeArchiver, *MemoryPubMap) {
	t.Helper()

	transport := &fakeTransport{}
	store := &fakeDecisionStore{app: sampleApplication()}
	archiver := &fakeArchiver{}
	pubmap := NewMemoryPubMap(time.Hour, 16)
	r := NewRouter(testAdminGroupID, registry.Default(), transport, pubmap, store, archiver, logger.NewTestLogger(t))
	return r, transport, store, archiver, pubmap
}

func reviewerCallback(data, originalText string) *models.CallbackQuery {
	return &models.CallbackQuery{
		ID:   "cb-decision",
		From: models.User{ID: 42, FirstName: "مشرف", LastName: "التيم"},
		Message: &models.Message{
			ID:   901,
			Chat: models.Chat{ID: testAdminGroupID, Type: "supergroup"},
			Text: originalText,
		},
		Data: data,
	}
}

// ==========================
// Publish
// ==========================

func TestPublish_SendsNotificationWithDecisionButtons(t *testing.T) {
	r, transport, _, _, pubmap := newTestRouter(t)
	app := sampleApplication()

	require.NoError(t, r.Publish(context.Background(), app))

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, testAdminGroupID, msg.ChatID)
	assert.Contains(t, msg.Text, "طلب تقديم جديد")
	assert.Contains(t, msg.Text, "أحمد علي")
	assert.Contains(t, msg.Text, "(@ahmed_ali)")
	assert.Contains(t, msg.Text, "تيم الاختبارات")
	assert.Contains(t, msg.Text, "ذكر")
	assert.Contains(t, msg.Text, app.Reason)
	assert.Contains(t, msg.Text, app.Experience)
	assert.NotContains(t, msg.Text, "واتساب")

	require.Len(t, msg.Buttons, 1)
	require.Len(t, msg.Buttons[0], 2)
	assert.Equal(t, "accept:111:team_exams", msg.Buttons[0][0].Data)
	assert.Equal(t, "reject:111:team_exams", msg.Buttons[0][1].Data)

	applicantID, ok, err := pubmap.Get(context.Background(), 901)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(111), applicantID)
}

func TestPublish_IncludesWhatsappWhenPresent(t *testing.T) {
	r, transport, _, _, _ := newTestRouter(t)
	app := sampleApplication()
	app.UserInfo.Username = ""
	app.Whatsapp = "+201012345678"

	require.NoError(t, r.Publish(context.Background(), app))

	msg := transport.sent[0]
	assert.Contains(t, msg.Text, "واتساب")
	assert.Contains(t, msg.Text, "+201012345678")
	assert.Contains(t, msg.Text, "(بدون معرف)")
}

func TestPublish_TransportFailure(t *testing.T) {
	r, transport, _, _, _ := newTestRouter(t)
	transport.sendErr = fmt.Errorf("telegram unreachable")

	err := r.Publish(context.Background(), sampleApplication())

	require.Error(t, err)
	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodePublicationFailed, stdErr.Code)
}

// ==========================
// Decide
// ==========================

func TestDecide_Accept(t *testing.T) {
	r, transport, store, archiver, _ := newTestRouter(t)
	original := "🆕 طلب تقديم جديد"

	require.NoError(t, r.Decide(context.Background(), reviewerCallback("accept:111:team_exams", original)))

	require.Len(t, store.calls, 1)
	call := store.calls[0]
	assert.Equal(t, int64(111), call.userID)
	assert.Equal(t, "team_exams", call.teamID)
	assert.Equal(t, models.StatusAccepted, call.status)
	assert.Equal(t, "مشرف التيم", call.decidedBy)

	require.Len(t, transport.sent, 1)
	applicantMsg := transport.sent[0]
	assert.Equal(t, int64(111), applicantMsg.ChatID)
	assert.Contains(t, applicantMsg.Text, "تهانينا")
	assert.Contains(t, applicantMsg.Text, "تيم الاختبارات")
	assert.Contains(t, applicantMsg.Text, "مشرف التيم")

	require.Len(t, transport.edits, 1)
	edit := transport.edits[0]
	assert.Equal(t, 901, edit.MessageID)
	assert.Contains(t, edit.Text, original)
	assert.Contains(t, edit.Text, "✅ تم قبول المتقدم")
	assert.Empty(t, edit.Buttons, "decision buttons should be retired")

	require.Len(t, archiver.archived, 1)
	assert.Equal(t, models.StatusAccepted, archiver.archived[0].Status)
}

func TestDecide_Reject(t *testing.T) {
	r, transport, store, _, _ := newTestRouter(t)

	require.NoError(t, r.Decide(context.Background(), reviewerCallback("reject:111:team_exams", "نص الطلب")))

	assert.Equal(t, models.StatusRejected, store.calls[0].status)

	applicantMsg := transport.sent[0]
	assert.Contains(t, applicantMsg.Text, "شكراً لك على اهتمامك")
	assert.Contains(t, applicantMsg.Text, "تم الرفض بواسطة")

	edit := transport.edits[0]
	assert.Contains(t, edit.Text, "❌ تم رفض المتقدم")
}

func TestDecide_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"underscore separators", "accept_111_team_exams"},
		{"missing team", "accept:111:"},
		{"missing user", "accept::team_exams"},
		{"non-numeric user", "accept:abc:team_exams"},
		{"unknown verdict", "approve:111:team_exams"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, transport, store, _, _ := newTestRouter(t)

			err := r.Decide(context.Background(), reviewerCallback(tt.data, "نص"))

			require.Error(t, err)
			var stdErr *apperrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, apperrors.ErrCodeDecisionMalformed, stdErr.Code)

			assert.Empty(t, store.calls)
			assert.Empty(t, transport.sent)

			require.Len(t, transport.answers, 1)
			assert.True(t, transport.answers[0].ShowAlert)
			assert.Contains(t, transport.answers[0].Text, "حدث خطأ")
		})
	}
}

func TestDecide_MissingRecordStillDelivers(t *testing.T) {
	r, transport, store, archiver, _ := newTestRouter(t)
	store.err = apperrors.NewRecordNotFoundError("111/team_exams")

	require.NoError(t, r.Decide(context.Background(), reviewerCallback("accept:111:team_exams", "نص")))

	require.Len(t, transport.sent, 1)
	assert.Contains(t, transport.sent[0].Text, "تهانينا")
	assert.Contains(t, transport.sent[0].Text, "تيم الاختبارات")
	require.Len(t, transport.edits, 1)
	assert.Empty(t, archiver.archived, "nothing to archive without a record")
}

func TestDecide_DeliveryFailureStillAudits(t *testing.T) {
	r, transport, store, _, _ := newTestRouter(t)
	transport.sendErr = fmt.Errorf("applicant blocked the bot")

	require.NoError(t, r.Decide(context.Background(), reviewerCallback("accept:111:team_exams", "نص")))

	require.Len(t, store.calls, 1, "verdict must be recorded before delivery")
	require.Len(t, transport.edits, 1)
	assert.Contains(t, transport.edits[0].Text, "✅ تم قبول المتقدم")
}

func TestDecide_UnknownTeamRendersPlaceholder(t *testing.T) {
	r, transport, store, _, _ := newTestRouter(t)
	store.err = apperrors.NewRecordNotFoundError("111/team_retired")

	require.NoError(t, r.Decide(context.Background(), reviewerCallback("accept:111:team_retired", "نص")))

	require.Len(t, transport.sent, 1)
	assert.Contains(t, transport.sent[0].Text, "غير معروف")
}

func TestParseDecisionPayload(t *testing.T) {
	verdict, applicantID, teamID, err := parseDecisionPayload("reject:987654:team_support")

	require.NoError(t, err)
	assert.Equal(t, "reject", verdict)
	assert.Equal(t, int64(987654), applicantID)
	assert.Equal(t, "team_support", teamID)
}

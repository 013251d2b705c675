// internal/relay/relay_test.go
package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
	"intake-bot/internal/router"
)

const testAdminGroupID int64 = -1009876543210

const testMediaMaxBytes int64 = 20 * 1024 * 1024

// ==========================
// Fakes
// ==========================

type fakeTransport struct {
	sent        []models.OutboundMessage
	edits       []models.MessageEdit
	answers     []models.CallbackAnswer
	sendErrOnce error
	nextMsgID   int
}

func (f *fakeTransport) SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error) {
	if f.sendErrOnce != nil {
		err := f.sendErrOnce
		f.sendErrOnce = nil
		return 0, err
	}
	f.sent = append(f.sent, msg)
	f.nextMsgID++
	return 700 + f.nextMsgID, nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, edit models.MessageEdit) error {
	f.edits = append(f.edits, edit)
	return nil
}

func (f *fakeTransport) AnswerCallback(ctx context.Context, answer models.CallbackAnswer) error {
	f.answers = append(f.answers, answer)
	return nil
}

type fakeDirectory struct {
	records map[int64]models.UserRecord
}

func (f *fakeDirectory) UserRecord(userID int64) (models.UserRecord, bool) {
	record, ok := f.records[userID]
	return record, ok
}

// ==========================
// Helpers
// ==========================

func newTestRelay(t *testing.T) (*Relay, *fakeTransport, *fakeDirectory, *router.MemoryPubMap) {
	t.Helper()

	transport := &fakeTransport{}
	directory := &fakeDirectory{records: map[int64]models.UserRecord{}}
	pubmap := router.NewMemoryPubMap(time.Hour, 64)
	r := New(testAdminGroupID, testMediaMaxBytes, transport, pubmap, directory, logger.NewTestLogger(t))
	return r, transport, directory, pubmap
}

func reviewer() models.User {
	return models.User{ID: 42, FirstName: "مشرف", LastName: "التيم"}
}

func applicantUser() models.User {
	return models.User{ID: 111, FirstName: "أحمد", LastName: "علي", Username: "ahmed_ali"}
}

func reviewerReply(replyToID int, text string) *models.Message {
	return &models.Message{
		ID:        1000,
		Chat:      models.Chat{ID: testAdminGroupID, Type: "supergroup"},
		From:      reviewer(),
		Text:      text,
		ReplyToID: replyToID,
	}
}

func applicantMessage(text string) *models.Message {
	user := applicantUser()
	return &models.Message{
		ID:   2000,
		Chat: models.Chat{ID: user.ID, Type: "private"},
		From: user,
		Text: text,
	}
}

func withApplication(directory *fakeDirectory, userID int64) {
	directory.records[userID] = models.UserRecord{
		FirstName:         "أحمد",
		TotalApplications: 1,
	}
}

// ==========================
// Reviewer to applicant
// ==========================

func TestReviewerReply_ForwardsToApplicant(t *testing.T) {
	r, transport, _, pubmap := newTestRelay(t)
	ctx := context.Background()
	require.NoError(t, pubmap.Put(ctx, 901, 111))

	handled, err := r.HandleReviewerReply(ctx, reviewerReply(901, "أهلاً، تم مراجعة طلبك"))

	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, transport.sent, 2)
	forward := transport.sent[0]
	assert.Equal(t, int64(111), forward.ChatID)
	assert.Contains(t, forward.Text, "رد من فريق Our Goal")
	assert.Contains(t, forward.Text, "أهلاً، تم مراجعة طلبك")
	assert.Contains(t, forward.Text, "يمكنك الرد على هذه الرسالة")

	ack := transport.sent[1]
	assert.Equal(t, testAdminGroupID, ack.ChatID)
	assert.Contains(t, ack.Text, "تم إرسال الرد للمتقدم بنجاح")

	session, ok := r.ActiveSession(111)
	require.True(t, ok)
	assert.True(t, session.Active)
	assert.Equal(t, int64(42), session.ReviewerID)
	assert.Equal(t, "مشرف التيم", session.ReviewerName)
}

func TestReviewerReply_UntrackedReplyIgnored(t *testing.T) {
	r, transport, _, _ := newTestRelay(t)

	handled, err := r.HandleReviewerReply(context.Background(), reviewerReply(555, "رد عشوائي"))

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, transport.sent)
}

func TestReviewerReply_NonReplyIgnored(t *testing.T) {
	r, transport, _, _ := newTestRelay(t)

	handled, err := r.HandleReviewerReply(context.Background(), reviewerReply(0, "كلام في الجروب"))

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, transport.sent)
}

func TestReviewerReply_ForwardsMedia(t *testing.T) {
	r, transport, _, pubmap := newTestRelay(t)
	ctx := context.Background()
	require.NoError(t, pubmap.Put(ctx, 901, 111))

	msg := reviewerReply(901, "")
	msg.Media = &models.MediaAttachment{
		Kind:     models.MediaPhoto,
		FileID:   "file-123",
		FileSize: 1024,
		Caption:  "صورة التعليمات",
	}

	handled, err := r.HandleReviewerReply(ctx, msg)

	require.NoError(t, err)
	assert.True(t, handled)

	forward := transport.sent[0]
	require.NotNil(t, forward.Media)
	assert.Equal(t, models.MediaPhoto, forward.Media.Kind)
	assert.Equal(t, "file-123", forward.Media.FileID)
	assert.Contains(t, forward.Media.Caption, "صورة التعليمات")

	ack := transport.sent[1]
	assert.Contains(t, ack.Text, "الصورة")
}

func TestReviewerReply_DeliveryFailureAcksFailure(t *testing.T) {
	r, transport, _, pubmap := newTestRelay(t)
	ctx := context.Background()
	require.NoError(t, pubmap.Put(ctx, 901, 111))
	transport.sendErrOnce = fmt.Errorf("applicant blocked the bot")

	handled, err := r.HandleReviewerReply(ctx, reviewerReply(901, "رد"))

	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, testAdminGroupID, transport.sent[0].ChatID)
	assert.Contains(t, transport.sent[0].Text, "فشل في إرسال الرد للمتقدم")
}

func TestReviewerReply_ReopensEndedSession(t *testing.T) {
	r, _, _, pubmap := newTestRelay(t)
	ctx := context.Background()
	require.NoError(t, pubmap.Put(ctx, 901, 111))
	r.sessions[111] = &ChatSession{ApplicantID: 111, Active: false}

	handled, err := r.HandleReviewerReply(ctx, reviewerReply(901, "رد جديد"))

	require.NoError(t, err)
	assert.True(t, handled)

	session, ok := r.ActiveSession(111)
	require.True(t, ok)
	assert.True(t, session.Active)
}

// ==========================
// Applicant to review channel
// ==========================

func TestForwardApplicant_WithApplication(t *testing.T) {
	r, transport, directory, pubmap := newTestRelay(t)
	withApplication(directory, 111)
	ctx := context.Background()

	handled, err := r.ForwardApplicantMessage(ctx, applicantMessage("عندي سؤال عن النتيجة"))

	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, transport.sent, 2)
	forward := transport.sent[0]
	assert.Equal(t, testAdminGroupID, forward.ChatID)
	assert.Contains(t, forward.Text, "رد من المتقدم")
	assert.Contains(t, forward.Text, "عندي سؤال عن النتيجة")
	assert.Contains(t, forward.Text, "أحمد علي")
	assert.Contains(t, forward.Text, "(@ahmed_ali)")
	assert.Contains(t, forward.Text, "111")

	require.Len(t, forward.Buttons, 1)
	assert.Equal(t, "end:111", forward.Buttons[0][0].Data)

	// The forwarded copy becomes a reply target.
	applicantID, ok, err := pubmap.Get(ctx, 701)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(111), applicantID)

	ack := transport.sent[1]
	assert.Equal(t, int64(111), ack.ChatID)
	assert.Contains(t, ack.Text, "تم إرسال رسالتك للإدارة")
}

func TestForwardApplicant_NotEligible(t *testing.T) {
	r, transport, _, _ := newTestRelay(t)

	handled, err := r.ForwardApplicantMessage(context.Background(), applicantMessage("مرحبا"))

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, transport.sent)
}

func TestForwardApplicant_ActiveSessionWithoutRecord(t *testing.T) {
	r, transport, _, _ := newTestRelay(t)
	r.sessions[111] = &ChatSession{ApplicantID: 111, Active: true}

	handled, err := r.ForwardApplicantMessage(context.Background(), applicantMessage("سؤال"))

	require.NoError(t, err)
	assert.True(t, handled)
	assert.NotEmpty(t, transport.sent)
}

func TestForwardApplicant_MediaForwarded(t *testing.T) {
	r, transport, directory, _ := newTestRelay(t)
	withApplication(directory, 111)

	msg := applicantMessage("")
	msg.Media = &models.MediaAttachment{
		Kind:     models.MediaVoice,
		FileID:   "voice-1",
		FileSize: 512 * 1024,
	}

	handled, err := r.ForwardApplicantMessage(context.Background(), msg)

	require.NoError(t, err)
	assert.True(t, handled)

	forward := transport.sent[0]
	require.NotNil(t, forward.Media)
	assert.Equal(t, models.MediaVoice, forward.Media.Kind)
	assert.Contains(t, forward.Media.Caption, "الرسالة الصوتية")
	assert.Contains(t, forward.Media.Caption, "أحمد علي")

	ack := transport.sent[1]
	assert.Contains(t, ack.Text, "تم استلام الوسائط بنجاح")
	assert.Contains(t, ack.Text, "الرسالة الصوتية")
}

func TestForwardApplicant_MediaTooLarge(t *testing.T) {
	r, transport, directory, _ := newTestRelay(t)
	withApplication(directory, 111)

	msg := applicantMessage("")
	msg.Media = &models.MediaAttachment{
		Kind:     models.MediaVideo,
		FileID:   "video-1",
		FileSize: 30 * 1024 * 1024,
	}

	handled, err := r.ForwardApplicantMessage(context.Background(), msg)

	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, transport.sent, 1)
	notice := transport.sent[0]
	assert.Equal(t, int64(111), notice.ChatID)
	assert.Contains(t, notice.Text, "خطأ في الوسائط")
	assert.Contains(t, notice.Text, "20")
}

func TestForwardApplicant_ForwardFailureNotifiesApplicant(t *testing.T) {
	r, transport, directory, _ := newTestRelay(t)
	withApplication(directory, 111)
	transport.sendErrOnce = fmt.Errorf("review channel unreachable")

	handled, err := r.ForwardApplicantMessage(context.Background(), applicantMessage("سؤال"))

	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, int64(111), transport.sent[0].ChatID)
	assert.Contains(t, transport.sent[0].Text, "فشل في إرسال الرسالة")
}

// ==========================
// Ending a bridge
// ==========================

func TestEnd_ClosesSessionAndNotifies(t *testing.T) {
	r, transport, _, _ := newTestRelay(t)
	r.sessions[111] = &ChatSession{ApplicantID: 111, Active: true}

	callback := &models.CallbackQuery{
		ID:   "cb-end",
		From: reviewer(),
		Message: &models.Message{
			ID:   1200,
			Chat: models.Chat{ID: testAdminGroupID, Type: "supergroup"},
			Text: "💬 رد من المتقدم",
		},
		Data: "end:111",
	}

	require.NoError(t, r.End(context.Background(), callback))

	session, ok := r.ActiveSession(111)
	require.True(t, ok)
	assert.False(t, session.Active)

	require.Len(t, transport.sent, 1)
	notice := transport.sent[0]
	assert.Equal(t, int64(111), notice.ChatID)
	assert.Contains(t, notice.Text, "تم إنهاء المحادثة")
	assert.Contains(t, notice.Text, "مشرف التيم")

	require.Len(t, transport.edits, 1)
	edit := transport.edits[0]
	assert.Equal(t, 1200, edit.MessageID)
	assert.Contains(t, edit.Text, "💬 رد من المتقدم")
	assert.Contains(t, edit.Text, "تم إنهاء المحادثة بواسطة مشرف التيم")

	assert.NotEmpty(t, transport.answers)
}

func TestEnd_MalformedPayloadIgnored(t *testing.T) {
	r, transport, _, _ := newTestRelay(t)

	callback := &models.CallbackQuery{
		ID:   "cb-end",
		From: reviewer(),
		Data: "end:abc",
	}

	require.NoError(t, r.End(context.Background(), callback))

	assert.Empty(t, transport.sent)
	assert.Empty(t, transport.edits)
	assert.NotEmpty(t, transport.answers)
}

func TestEnd_WithoutSessionStillNotifies(t *testing.T) {
	r, transport, _, _ := newTestRelay(t)

	callback := &models.CallbackQuery{
		ID:   "cb-end",
		From: reviewer(),
		Data: "end:111",
	}

	require.NoError(t, r.End(context.Background(), callback))

	require.Len(t, transport.sent, 1)
	assert.Equal(t, int64(111), transport.sent[0].ChatID)
}

// internal/telegram/client_test.go
package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/retry"
	"intake-bot/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedCall struct {
	method  string
	path    string
	payload map[string]interface{}
}

// apiRecorder plays a scripted Bot API. Responses are dequeued per call;
// when the script runs out it answers ok with an empty result.
type apiRecorder struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses []scriptedResponse
}

type scriptedResponse struct {
	status int
	body   string
}

func (r *apiRecorder) script(status int, body string) {
	r.responses = append(r.responses, scriptedResponse{status: status, body: body})
}

func (r *apiRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var payload map[string]interface{}
		json.Unmarshal(body, &payload)

		r.mu.Lock()
		r.calls = append(r.calls, recordedCall{
			method:  path.Base(req.URL.Path),
			path:    req.URL.Path,
			payload: payload,
		})
		resp := scriptedResponse{status: http.StatusOK, body: `{"ok":true,"result":{}}`}
		if len(r.responses) > 0 {
			resp = r.responses[0]
			r.responses = r.responses[1:]
		}
		r.mu.Unlock()

		w.WriteHeader(resp.status)
		io.WriteString(w, resp.body)
	}
}

func (r *apiRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *apiRecorder) lastCall(t *testing.T) recordedCall {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.calls)
	return r.calls[len(r.calls)-1]
}

func newTestClient(t *testing.T) (*Client, *apiRecorder) {
	t.Helper()

	recorder := &apiRecorder{}
	server := httptest.NewServer(recorder.handler())
	t.Cleanup(server.Close)

	cfg := config.BotConfig{
		Token:          "test-token",
		APIBaseURL:     server.URL,
		PollTimeout:    1000,
		RequestTimeout: 2000,
	}
	client := NewClient(cfg, logger.NewTestLogger(t))
	client.retryCfg = &retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return client, recorder
}

func keyboardButton(t *testing.T, payload map[string]interface{}, row, col int) map[string]interface{} {
	t.Helper()

	markup, ok := payload["reply_markup"].(map[string]interface{})
	require.True(t, ok, "payload has no reply_markup")
	rows, ok := markup["inline_keyboard"].([]interface{})
	require.True(t, ok)
	require.Greater(t, len(rows), row)
	buttons, ok := rows[row].([]interface{})
	require.True(t, ok)
	require.Greater(t, len(buttons), col)
	button, ok := buttons[col].(map[string]interface{})
	require.True(t, ok)
	return button
}

// ==========================
// Sending
// ==========================

func TestSendMessage_Success(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusOK, `{"ok":true,"result":{"message_id":901}}`)

	messageID, err := client.SendMessage(context.Background(), models.OutboundMessage{
		ChatID: 111,
		Text:   "<b>مرحباً</b>",
		Buttons: [][]models.InlineButton{
			{{Text: "تيم الاختبارات", Data: "team:team_exams"}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 901, messageID)

	call := recorder.lastCall(t)
	assert.Equal(t, "/bottest-token/sendMessage", call.path)
	assert.EqualValues(t, 111, call.payload["chat_id"])
	assert.Equal(t, "<b>مرحباً</b>", call.payload["text"])
	assert.Equal(t, "HTML", call.payload["parse_mode"])

	button := keyboardButton(t, call.payload, 0, 0)
	assert.Equal(t, "تيم الاختبارات", button["text"])
	assert.Equal(t, "team:team_exams", button["callback_data"])
}

func TestSendMessage_APIRejection(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)

	_, err := client.SendMessage(context.Background(), models.OutboundMessage{ChatID: 111, Text: "مرحباً"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	// A 400 is not transient, no retry happens.
	assert.Equal(t, 1, recorder.callCount())
}

func TestSendMessage_RetriesServerErrors(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusBadGateway, `upstream error`)
	recorder.script(http.StatusOK, `{"ok":true,"result":{"message_id":902}}`)

	messageID, err := client.SendMessage(context.Background(), models.OutboundMessage{ChatID: 111, Text: "مرحباً"})

	require.NoError(t, err)
	assert.Equal(t, 902, messageID)
	assert.Equal(t, 2, recorder.callCount())
}

func TestSendMessage_PhotoUsesSendPhoto(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusOK, `{"ok":true,"result":{"message_id":903}}`)

	_, err := client.SendMessage(context.Background(), models.OutboundMessage{
		ChatID: 111,
		Media:  &models.MediaRef{Kind: models.MediaPhoto, FileID: "photo-7", Caption: "وصف الصورة"},
	})

	require.NoError(t, err)

	call := recorder.lastCall(t)
	assert.Equal(t, "sendPhoto", call.method)
	assert.Equal(t, "photo-7", call.payload["photo"])
	assert.Equal(t, "وصف الصورة", call.payload["caption"])
}

func TestSendMessage_VoiceUsesSendVoice(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusOK, `{"ok":true,"result":{"message_id":904}}`)

	_, err := client.SendMessage(context.Background(), models.OutboundMessage{
		ChatID: 111,
		Media:  &models.MediaRef{Kind: models.MediaVoice, FileID: "voice-3"},
	})

	require.NoError(t, err)
	assert.Equal(t, "sendVoice", recorder.lastCall(t).method)
	assert.Equal(t, "voice-3", recorder.lastCall(t).payload["voice"])
}

func TestEditMessage_DropsKeyboardWhenNoButtons(t *testing.T) {
	client, recorder := newTestClient(t)

	err := client.EditMessage(context.Background(), models.MessageEdit{
		ChatID:    -100200,
		MessageID: 901,
		Text:      "تم تحديث الرسالة",
	})

	require.NoError(t, err)

	call := recorder.lastCall(t)
	assert.Equal(t, "editMessageText", call.method)
	assert.EqualValues(t, -100200, call.payload["chat_id"])
	assert.EqualValues(t, 901, call.payload["message_id"])
	assert.Equal(t, "تم تحديث الرسالة", call.payload["text"])
	assert.NotContains(t, call.payload, "reply_markup")
}

func TestEditMessage_KeepsButtons(t *testing.T) {
	client, recorder := newTestClient(t)

	err := client.EditMessage(context.Background(), models.MessageEdit{
		ChatID:    111,
		MessageID: 902,
		Text:      "اختر الجنس",
		Buttons: [][]models.InlineButton{
			{{Text: "ذكر 👨", Data: "gender:male"}, {Text: "أنثى 👩", Data: "gender:female"}},
		},
	})

	require.NoError(t, err)

	button := keyboardButton(t, recorder.lastCall(t).payload, 0, 1)
	assert.Equal(t, "gender:female", button["callback_data"])
}

func TestAnswerCallback(t *testing.T) {
	client, recorder := newTestClient(t)

	err := client.AnswerCallback(context.Background(), models.CallbackAnswer{
		CallbackID: "cb-42",
		Text:       "تم",
		ShowAlert:  true,
	})

	require.NoError(t, err)

	call := recorder.lastCall(t)
	assert.Equal(t, "answerCallbackQuery", call.method)
	assert.Equal(t, "cb-42", call.payload["callback_query_id"])
	assert.Equal(t, "تم", call.payload["text"])
	assert.Equal(t, true, call.payload["show_alert"])
}

// ==========================
// Polling
// ==========================

func TestGetUpdates_MapsWireFormat(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusOK, `{"ok":true,"result":[
		{
			"update_id": 5001,
			"message": {
				"message_id": 10,
				"from": {"id": 111, "first_name": "أحمد", "last_name": "علي", "username": "ahmed_ali"},
				"chat": {"id": 111, "type": "private"},
				"text": "مرحباً",
				"reply_to_message": {"message_id": 9, "chat": {"id": 111, "type": "private"}}
			}
		},
		{
			"update_id": 5002,
			"message": {
				"message_id": 11,
				"from": {"id": 222, "first_name": "سارة"},
				"chat": {"id": 222, "type": "private"},
				"caption": "صورة البطاقة",
				"photo": [
					{"file_id": "photo-small", "file_size": 1024, "width": 90, "height": 90},
					{"file_id": "photo-large", "file_size": 204800, "width": 1280, "height": 1280}
				]
			}
		},
		{
			"update_id": 5003,
			"callback_query": {
				"id": "cb-7",
				"from": {"id": 333, "first_name": "مشرف"},
				"message": {"message_id": 12, "chat": {"id": -100200, "type": "supergroup"}, "text": "طلب انضمام"},
				"data": "accept:111:team_exams"
			}
		}
	]}`)

	updates, err := client.GetUpdates(context.Background(), 5001)

	require.NoError(t, err)
	require.Len(t, updates, 3)

	call := recorder.lastCall(t)
	assert.Equal(t, "getUpdates", call.method)
	assert.EqualValues(t, 5001, call.payload["offset"])
	assert.EqualValues(t, 1, call.payload["timeout"])
	assert.Contains(t, call.payload["allowed_updates"], "callback_query")

	text := updates[0]
	assert.EqualValues(t, 5001, text.ID)
	require.NotNil(t, text.Message)
	assert.Equal(t, 10, text.Message.ID)
	assert.Equal(t, "مرحباً", text.Message.Text)
	assert.Equal(t, 9, text.Message.ReplyToID)
	assert.Equal(t, "أحمد علي", text.Message.From.FullName())

	photo := updates[1]
	require.NotNil(t, photo.Message)
	require.NotNil(t, photo.Message.Media)
	assert.Equal(t, models.MediaPhoto, photo.Message.Media.Kind)
	assert.Equal(t, "photo-large", photo.Message.Media.FileID)
	assert.EqualValues(t, 204800, photo.Message.Media.FileSize)
	assert.Equal(t, "صورة البطاقة", photo.Message.Media.Caption)

	callback := updates[2]
	require.NotNil(t, callback.Callback)
	assert.Equal(t, "cb-7", callback.Callback.ID)
	assert.Equal(t, "accept:111:team_exams", callback.Callback.Data)
	require.NotNil(t, callback.Callback.Message)
	assert.EqualValues(t, -100200, callback.Callback.Message.Chat.ID)
}

func TestGetUpdates_MalformedResult(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusOK, `{"ok":true,"result":{}}`)

	updates, err := client.GetUpdates(context.Background(), 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal updates")
	assert.Nil(t, updates)
}

func TestGetUpdates_EmptyResultArray(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusOK, `{"ok":true,"result":[]}`)

	updates, err := client.GetUpdates(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Equal(t, 1, recorder.callCount())
}

// ==========================
// Bootstrap calls
// ==========================

func TestGetMe(t *testing.T) {
	client, recorder := newTestClient(t)
	recorder.script(http.StatusOK, `{"ok":true,"result":{"id":99,"first_name":"Our Goal Bot","username":"our_goal_bot"}}`)

	me, err := client.GetMe(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 99, me.ID)
	assert.Equal(t, "our_goal_bot", me.Username)
	assert.Equal(t, "getMe", recorder.lastCall(t).method)
}

func TestSetMyCommands(t *testing.T) {
	client, recorder := newTestClient(t)

	err := client.SetMyCommands(context.Background(), []Command{
		{Command: "start", Description: "بدء التقديم"},
		{Command: "help", Description: "المساعدة"},
	})

	require.NoError(t, err)

	call := recorder.lastCall(t)
	assert.Equal(t, "setMyCommands", call.method)
	commands, ok := call.payload["commands"].([]interface{})
	require.True(t, ok)
	assert.Len(t, commands, 2)
}

func TestDeleteWebhook(t *testing.T) {
	client, recorder := newTestClient(t)

	err := client.DeleteWebhook(context.Background(), true)

	require.NoError(t, err)

	call := recorder.lastCall(t)
	assert.Equal(t, "deleteWebhook", call.method)
	assert.Equal(t, true, call.payload["drop_pending_updates"])
}

// ==========================
// Token hygiene
// ==========================

func TestTransportErrorsOmitToken(t *testing.T) {
	recorder := &apiRecorder{}
	server := httptest.NewServer(recorder.handler())
	serverURL := server.URL
	server.Close()

	cfg := config.BotConfig{Token: "secret-token", APIBaseURL: serverURL, RequestTimeout: 500}
	client := NewClient(cfg, logger.NewTestLogger(t))
	client.retryCfg = &retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := client.SendMessage(context.Background(), models.OutboundMessage{ChatID: 111, Text: "مرحباً"})

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

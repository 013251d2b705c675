// internal/telegram/client.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"intake-bot/internal/common/config"
	commonhttp "intake-bot/internal/common/http"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/retry"
	"intake-bot/internal/models"
)

const (
	defaultAPIBaseURL     = "https://api.telegram.org"
	defaultPollTimeout    = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Client talks to the Telegram Bot API over HTTPS. It maps the wire format
// into the transport-neutral models so the rest of the service never sees
// Bot API JSON. One client instance is safe for concurrent use.
type Client struct {
	token       string
	baseURL     string
	httpClient  *commonhttp.Client
	pollClient  *commonhttp.Client
	pollTimeout time.Duration
	retryCfg    *retry.Config
	logger      logger.Logger
}

// Command is one entry of the bot command menu.
type Command struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// NewClient creates a Bot API client from the bot configuration. APIBaseURL
// is overridable for tests.
func NewClient(cfg config.BotConfig, log logger.Logger) *Client {
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}

	requestTimeout := defaultRequestTimeout
	if cfg.RequestTimeout > 0 {
		requestTimeout = time.Duration(cfg.RequestTimeout) * time.Millisecond
	}

	pollTimeout := defaultPollTimeout
	if cfg.PollTimeout > 0 {
		pollTimeout = time.Duration(cfg.PollTimeout) * time.Millisecond
	}

	return &Client{
		token:       cfg.Token,
		baseURL:     baseURL,
		httpClient:  commonhttp.NewClient(requestTimeout),
		pollClient:  commonhttp.NewPollingClient(pollTimeout),
		pollTimeout: pollTimeout,
		retryCfg:    &retry.Config{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second},
		logger:      log.With(map[string]interface{}{"component": "telegram"}),
	}
}

// ==========================
// Wire format
// ==========================

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type wireUpdate struct {
	UpdateID int64         `json:"update_id"`
	Message  *wireMessage  `json:"message"`
	Callback *wireCallback `json:"callback_query"`
}

type wireMessage struct {
	MessageID int             `json:"message_id"`
	From      *wireUser       `json:"from"`
	Chat      wireChat        `json:"chat"`
	Text      string          `json:"text"`
	Caption   string          `json:"caption"`
	ReplyTo   *wireMessage    `json:"reply_to_message"`
	Photo     []wirePhotoSize `json:"photo"`
	Video     *wireFile       `json:"video"`
	Audio     *wireFile       `json:"audio"`
	Voice     *wireFile       `json:"voice"`
}

type wireUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type wireChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type wirePhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type wireFile struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type wireCallback struct {
	ID      string       `json:"id"`
	From    wireUser     `json:"from"`
	Message *wireMessage `json:"message"`
	Data    string       `json:"data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type sendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type sendMediaRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Photo       string                `json:"photo,omitempty"`
	Video       string                `json:"video,omitempty"`
	Audio       string                `json:"audio,omitempty"`
	Voice       string                `json:"voice,omitempty"`
	Caption     string                `json:"caption,omitempty"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type setMyCommandsRequest struct {
	Commands []Command `json:"commands"`
}

type deleteWebhookRequest struct {
	DropPendingUpdates bool `json:"drop_pending_updates"`
}

// ==========================
// Sending
// ==========================

// SendMessage delivers one outbound message, media or text, with HTML parse
// mode. Returns the platform message id of the sent message.
func (c *Client) SendMessage(ctx context.Context, msg models.OutboundMessage) (int, error) {
	if msg.Media != nil {
		return c.sendMedia(ctx, msg)
	}

	payload := sendMessageRequest{
		ChatID:      msg.ChatID,
		Text:        msg.Text,
		ParseMode:   "HTML",
		ReplyMarkup: buildKeyboard(msg.Buttons),
	}

	var messageID int
	err := retry.Do(ctx, c.retryCfg, "sendMessage", func(ctx context.Context) error {
		result, err := c.call(ctx, c.httpClient, "sendMessage", payload)
		if err != nil {
			return err
		}
		messageID, err = parseMessageID(result)
		return err
	})
	return messageID, err
}

func (c *Client) sendMedia(ctx context.Context, msg models.OutboundMessage) (int, error) {
	method, err := mediaMethod(msg.Media.Kind)
	if err != nil {
		return 0, err
	}

	caption := msg.Media.Caption
	if caption == "" {
		caption = msg.Text
	}

	payload := sendMediaRequest{
		ChatID:      msg.ChatID,
		Caption:     caption,
		ParseMode:   "HTML",
		ReplyMarkup: buildKeyboard(msg.Buttons),
	}
	switch msg.Media.Kind {
	case models.MediaPhoto:
		payload.Photo = msg.Media.FileID
	case models.MediaVideo:
		payload.Video = msg.Media.FileID
	case models.MediaAudio:
		payload.Audio = msg.Media.FileID
	case models.MediaVoice:
		payload.Voice = msg.Media.FileID
	}

	var messageID int
	err = retry.Do(ctx, c.retryCfg, method, func(ctx context.Context) error {
		result, err := c.call(ctx, c.httpClient, method, payload)
		if err != nil {
			return err
		}
		messageID, err = parseMessageID(result)
		return err
	})
	return messageID, err
}

// EditMessage rewrites a previously sent message. Omitting Buttons drops any
// inline keyboard the message carried.
func (c *Client) EditMessage(ctx context.Context, edit models.MessageEdit) error {
	payload := editMessageRequest{
		ChatID:      edit.ChatID,
		MessageID:   edit.MessageID,
		Text:        edit.Text,
		ParseMode:   "HTML",
		ReplyMarkup: buildKeyboard(edit.Buttons),
	}

	return retry.Do(ctx, c.retryCfg, "editMessageText", func(ctx context.Context) error {
		_, err := c.call(ctx, c.httpClient, "editMessageText", payload)
		return err
	})
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallback(ctx context.Context, answer models.CallbackAnswer) error {
	payload := answerCallbackRequest{
		CallbackQueryID: answer.CallbackID,
		Text:            answer.Text,
		ShowAlert:       answer.ShowAlert,
	}

	// Callback acks expire server-side after a few seconds, one attempt only.
	_, err := c.call(ctx, c.httpClient, "answerCallbackQuery", payload)
	return err
}

// ==========================
// Polling
// ==========================

// GetUpdates long-polls for the next batch of updates starting at offset.
// The call blocks up to the configured poll timeout when no updates are
// pending.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]models.Update, error) {
	payload := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(c.pollTimeout / time.Second),
		AllowedUpdates: []string{"message", "callback_query"},
	}

	result, err := c.call(ctx, c.pollClient, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var wire []wireUpdate
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}

	updates := make([]models.Update, 0, len(wire))
	for _, w := range wire {
		updates = append(updates, mapUpdate(w))
	}

	if len(updates) > 0 {
		c.logger.Debug("updates received", map[string]interface{}{
			"count":  len(updates),
			"offset": offset,
		})
	}
	return updates, nil
}

// ==========================
// Bootstrap calls
// ==========================

// GetMe verifies the token and returns the bot identity.
func (c *Client) GetMe(ctx context.Context) (models.User, error) {
	result, err := c.call(ctx, c.httpClient, "getMe", struct{}{})
	if err != nil {
		return models.User{}, err
	}

	var me wireUser
	if err := json.Unmarshal(result, &me); err != nil {
		return models.User{}, fmt.Errorf("failed to unmarshal bot identity: %w", err)
	}
	return mapUser(me), nil
}

// SetMyCommands registers the command menu shown in private chats.
func (c *Client) SetMyCommands(ctx context.Context, commands []Command) error {
	_, err := c.call(ctx, c.httpClient, "setMyCommands", setMyCommandsRequest{Commands: commands})
	return err
}

// DeleteWebhook switches the bot to long polling. With dropPending true any
// backlog accumulated while the bot was down is discarded.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	_, err := c.call(ctx, c.httpClient, "deleteWebhook", deleteWebhookRequest{DropPendingUpdates: dropPending})
	return err
}

// ==========================
// Transport plumbing
// ==========================

func (c *Client) call(ctx context.Context, httpClient *commonhttp.Client, method string, payload interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		// The request URL embeds the bot token; keep url.Error out of the chain.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("failed to execute %s request: %w", method, urlErr.Err)
		}
		return nil, fmt.Errorf("failed to execute %s request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%s failed (status %d %s)", method, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s response: %w", method, err)
	}

	if !apiResp.OK {
		return nil, fmt.Errorf("%s rejected (code %d): %s", method, apiResp.ErrorCode, apiResp.Description)
	}

	return apiResp.Result, nil
}

func parseMessageID(result json.RawMessage) (int, error) {
	var sent wireMessage
	if err := json.Unmarshal(result, &sent); err != nil {
		return 0, fmt.Errorf("failed to unmarshal sent message: %w", err)
	}
	return sent.MessageID, nil
}

func buildKeyboard(rows [][]models.InlineButton) *inlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	markup := &inlineKeyboardMarkup{InlineKeyboard: make([][]inlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]inlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, inlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

func mediaMethod(kind models.MediaKind) (string, error) {
	switch kind {
	case models.MediaPhoto:
		return "sendPhoto", nil
	case models.MediaVideo:
		return "sendVideo", nil
	case models.MediaAudio:
		return "sendAudio", nil
	case models.MediaVoice:
		return "sendVoice", nil
	}
	return "", fmt.Errorf("unsupported media kind: %s", kind)
}

// ==========================
// Wire to model mapping
// ==========================

func mapUpdate(w wireUpdate) models.Update {
	upd := models.Update{ID: w.UpdateID}
	if w.Message != nil {
		msg := mapMessage(w.Message)
		upd.Message = &msg
	}
	if w.Callback != nil {
		cb := models.CallbackQuery{
			ID:   w.Callback.ID,
			From: mapUser(w.Callback.From),
			Data: w.Callback.Data,
		}
		if w.Callback.Message != nil {
			msg := mapMessage(w.Callback.Message)
			cb.Message = &msg
		}
		upd.Callback = &cb
	}
	return upd
}

func mapMessage(w *wireMessage) models.Message {
	msg := models.Message{
		ID:    w.MessageID,
		Chat:  models.Chat{ID: w.Chat.ID, Type: w.Chat.Type},
		Text:  w.Text,
		Media: mapMedia(w),
	}
	if w.From != nil {
		msg.From = mapUser(*w.From)
	}
	if w.ReplyTo != nil {
		msg.ReplyToID = w.ReplyTo.MessageID
	}
	return msg
}

func mapMedia(w *wireMessage) *models.MediaAttachment {
	switch {
	case len(w.Photo) > 0:
		// Photo arrives as a size ladder; the last entry is the original.
		largest := w.Photo[len(w.Photo)-1]
		return &models.MediaAttachment{Kind: models.MediaPhoto, FileID: largest.FileID, FileSize: largest.FileSize, Caption: w.Caption}
	case w.Video != nil:
		return &models.MediaAttachment{Kind: models.MediaVideo, FileID: w.Video.FileID, FileSize: w.Video.FileSize, Caption: w.Caption}
	case w.Audio != nil:
		return &models.MediaAttachment{Kind: models.MediaAudio, FileID: w.Audio.FileID, FileSize: w.Audio.FileSize, Caption: w.Caption}
	case w.Voice != nil:
		return &models.MediaAttachment{Kind: models.MediaVoice, FileID: w.Voice.FileID, FileSize: w.Voice.FileSize, Caption: w.Caption}
	}
	return nil
}

func mapUser(w wireUser) models.User {
	return models.User{
		ID:        w.ID,
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Username:  w.Username,
	}
}

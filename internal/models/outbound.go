// internal/models/outbound.go
package models

// Outbound message model consumed by the transport interfaces each component
// declares for itself.

// InlineButton is one action button attached to an outbound message.
type InlineButton struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// MediaRef points at an already-uploaded platform file to re-send.
type MediaRef struct {
	Kind    MediaKind `json:"kind"`
	FileID  string    `json:"file_id"`
	Caption string    `json:"caption"`
}

// OutboundMessage is a templated message to deliver. Buttons are rows of
// inline actions; Media, when set, replaces Text as the primary payload and
// Text becomes the caption fallback.
type OutboundMessage struct {
	ChatID  int64            `json:"chat_id"`
	Text    string           `json:"text"`
	Buttons [][]InlineButton `json:"buttons,omitempty"`
	Media   *MediaRef        `json:"media,omitempty"`
}

// MessageEdit rewrites a previously sent message in place. Editing without
// Buttons drops any keyboard the message carried, which is how decision
// buttons are retired after a verdict.
type MessageEdit struct {
	ChatID    int64            `json:"chat_id"`
	MessageID int              `json:"message_id"`
	Text      string           `json:"text"`
	Buttons   [][]InlineButton `json:"buttons,omitempty"`
}

// CallbackAnswer acknowledges a button press, optionally with an alert.
type CallbackAnswer struct {
	CallbackID string `json:"callback_id"`
	Text       string `json:"text"`
	ShowAlert  bool   `json:"show_alert"`
}

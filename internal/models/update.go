// internal/models/update.go
package models

// Transport-neutral inbound event model. The telegram adapter maps Bot API
// updates into these types; dispatch and the domain components never see the
// wire format.

// MediaKind enumerates the media attachments the relay can forward.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaVoice MediaKind = "voice"
)

// User identifies the sender of an inbound message or callback.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// FullName joins first and last name, skipping an empty last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Chat identifies where a message originated.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// MediaAttachment carries a platform file reference; the file content itself
// never passes through this service.
type MediaAttachment struct {
	Kind     MediaKind `json:"kind"`
	FileID   string    `json:"file_id"`
	FileSize int64     `json:"file_size"`
	Caption  string    `json:"caption"`
}

// Message is one inbound chat message.
type Message struct {
	ID        int              `json:"id"`
	Chat      Chat             `json:"chat"`
	From      User             `json:"from"`
	Text      string           `json:"text"`
	ReplyToID int              `json:"reply_to_id"`
	Media     *MediaAttachment `json:"media,omitempty"`
}

// CallbackQuery is a button press. Data carries the action payload
// (team:..., gender:..., accept:..., reject:..., end:...).
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// Update is the unit of work handed to the dispatcher. Exactly one of
// Message and Callback is set.
type Update struct {
	ID       int64          `json:"id"`
	Message  *Message       `json:"message,omitempty"`
	Callback *CallbackQuery `json:"callback,omitempty"`
}

// Package event defines the input alphabet the matcher consumes.
//
// An Update is the raw heterogeneous variant decoded upstream of this
// module (by a platform client canoe does not own). Messageable is the
// narrower projection that the matching engine actually sees: either an
// IncomingMessage or a CallbackQuery. Selectors (see package selector)
// interrogate a Messageable; they never see the wider Update.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Document describes a file attachment on an incoming message.
type Document struct {
	FileID   string
	FileName string
	MimeType string
	Size     int64
}

// Message is an incoming text (and possibly document) message from a
// participant.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	Document       *Document
	SentAt         time.Time
	EditedAt       *time.Time
}

// NewMessage builds a Message with a fresh random ID and SentAt set to
// the current time.
func NewMessage(conversationID, senderID, text string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		SentAt:         time.Now(),
	}
}

// Callback is a callback-button press referencing the message that
// carried the button.
type Callback struct {
	ID             string
	ConversationID string
	SenderID       string
	MessageID      string
	Data           string
	At             time.Time
}

// Messageable is the closed set of events the matcher can consume. Only
// IncomingMessage and CallbackQuery implement it; the marker method keeps
// the variant closed to this package.
type Messageable interface {
	ConversationID() string
	OccurredAt() time.Time
	messageable()
}

// IncomingMessage adapts a Message to Messageable.
type IncomingMessage struct {
	*Message
}

func (m IncomingMessage) ConversationID() string { return m.Message.ConversationID }
func (m IncomingMessage) OccurredAt() time.Time   { return m.Message.SentAt }
func (m IncomingMessage) messageable()            {}

// CallbackQuery adapts a Callback to Messageable.
type CallbackQuery struct {
	*Callback
}

func (c CallbackQuery) ConversationID() string { return c.Callback.ConversationID }
func (c CallbackQuery) OccurredAt() time.Time   { return c.Callback.At }
func (c CallbackQuery) messageable()            {}

// InlineQuery is part of the wider Update variant but has no projection
// into Messageable; the matcher never sees one directly.
type InlineQuery struct {
	ID       string
	SenderID string
	Query    string
	At       time.Time
}

// Update is the raw platform update: a tagged union of everything the
// external decoder can hand canoe. Exactly one field is non-nil.
type Update struct {
	Message     *Message
	Edited      *Message
	Callback    *Callback
	InlineQuery *InlineQuery
}

// Messageable projects an Update onto the matcher's alphabet. The second
// return value is false for Update variants with no projection (Edited,
// InlineQuery); transport.Messageables drops those before events reach
// the matcher.
func (u *Update) Messageable() (Messageable, bool) {
	switch {
	case u.Message != nil:
		return IncomingMessage{u.Message}, true
	case u.Callback != nil:
		return CallbackQuery{u.Callback}, true
	default:
		return nil, false
	}
}

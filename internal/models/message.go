package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a directed message between two profiles.
// Everything except the Read flag is immutable once inserted; Read only
// ever transitions false to true.
type Message struct {
	ID            uuid.UUID `json:"id"`
	SenderID      uuid.UUID `json:"sender_id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	Content       string    `json:"content"`
	Read          bool      `json:"read"`
	IsAIGenerated bool      `json:"is_ai_generated"`
	CreatedAt     time.Time `json:"created_at"`

	// Profile snapshots joined at query time; read-only, owned by the
	// identity subsystem.
	Sender    *Profile `json:"sender,omitempty"`
	Recipient *Profile `json:"recipient,omitempty"`
}

// MessageRequest is the structure for message creation requests
type MessageRequest struct {
	RecipientID   uuid.UUID `json:"recipient_id" binding:"required"`
	Content       string    `json:"content" binding:"required,min=1"`
	IsAIGenerated bool      `json:"is_ai_generated"`
}

// CounterpartOf returns the other party of the message relative to viewer.
func (m *Message) CounterpartOf(viewerID uuid.UUID) uuid.UUID {
	if m.SenderID == viewerID {
		return m.RecipientID
	}
	return m.SenderID
}

// CounterpartProfileOf returns the joined profile of the other party
// relative to viewer, if present.
func (m *Message) CounterpartProfileOf(viewerID uuid.UUID) *Profile {
	if m.SenderID == viewerID {
		return m.Recipient
	}
	return m.Sender
}

// UnreadFor reports whether the message counts as unread for viewer:
// addressed to the viewer and not yet read. Messages the viewer sent are
// never unread for the viewer.
func (m *Message) UnreadFor(viewerID uuid.UUID) bool {
	return !m.Read && m.RecipientID == viewerID
}

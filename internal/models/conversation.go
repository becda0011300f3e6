package models

import "github.com/google/uuid"

// Conversation is a derived view of a two-party exchange, keyed by the
// counterpart's profile id relative to some viewer. It is never persisted;
// it is recomputed from the message log whenever the log changes.
type Conversation struct {
	Profile     *Profile `json:"profile"`
	LastMessage *Message `json:"last_message"`
	UnreadCount int      `json:"unread_count"`
}

// NewConversation seeds a conversation from the most recent message with the
// given counterpart, as seen by viewer.
func NewConversation(viewerID uuid.UUID, counterpart *Profile, last *Message) *Conversation {
	c := &Conversation{
		Profile:     counterpart,
		LastMessage: last,
	}
	if last != nil && last.UnreadFor(viewerID) {
		c.UnreadCount = 1
	}
	return c
}

// CounterpartID returns the id of the conversation's other party.
func (c *Conversation) CounterpartID() uuid.UUID {
	if c.Profile != nil {
		return c.Profile.ID
	}
	return uuid.Nil
}

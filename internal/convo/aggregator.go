package convo

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/models"
)

// Aggregate derives the viewer's conversation list from the flat message
// log: one entry per counterpart, carrying that counterpart's profile
// snapshot, the most recent message between the pair in either direction,
// and the count of unread messages addressed to the viewer.
//
// The input is sorted by (created_at desc, id asc) before grouping, so the
// first message seen for a counterpart is the most recent one and wins as
// the conversation's last message; every later (older) unread message
// addressed to the viewer still bumps the unread count. Equal timestamps
// order by message id, which keeps the result deterministic.
//
// Conversations are returned in first-encounter order, which equals
// descending order of last-message time. The function is pure; an empty
// message set yields an empty list.
func Aggregate(viewerID uuid.UUID, messages []*models.Message) ([]*models.Conversation, error) {
	if viewerID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty viewer id", ErrInvalidInput)
	}

	sorted := make([]*models.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	byCounterpart := make(map[uuid.UUID]*models.Conversation)
	conversations := make([]*models.Conversation, 0, len(byCounterpart))

	for _, msg := range sorted {
		counterpartID := msg.CounterpartOf(viewerID)

		if existing, ok := byCounterpart[counterpartID]; ok {
			// The last message is already settled; older rows only
			// contribute to the unread count.
			if msg.UnreadFor(viewerID) {
				existing.UnreadCount++
			}
			continue
		}

		conversation := models.NewConversation(viewerID, msg.CounterpartProfileOf(viewerID), msg)
		byCounterpart[counterpartID] = conversation
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

package convo

import (
	"fmt"

	"github.com/google/uuid"
)

// ReadStore is the slice of the message store the read-state manager needs.
type ReadStore interface {
	MarkConversationRead(viewerID, counterpartID uuid.UUID) (int64, error)
}

// ReadStateManager transitions unread messages to read when a conversation
// is opened. The transition is monotonic: read messages never become unread
// again, and repeating the call is a no-op that reports zero changed rows.
type ReadStateManager struct {
	store ReadStore
}

func NewReadStateManager(store ReadStore) *ReadStateManager {
	return &ReadStateManager{store: store}
}

// MarkRead flips every unread message from counterpart to viewer to read as
// one conditional bulk update and returns the number of rows changed. The
// update is scoped by the unread predicate at execution time, never a
// precomputed id list, so a message delivered after the store's snapshot
// stays unread even when an older call races it. Messages the viewer sent
// are never touched. Zero changed rows is a normal outcome.
func (m *ReadStateManager) MarkRead(viewerID, counterpartID uuid.UUID) (int64, error) {
	if viewerID == uuid.Nil || counterpartID == uuid.Nil {
		return 0, fmt.Errorf("%w: empty viewer or counterpart id", ErrInvalidInput)
	}

	changed, err := m.store.MarkConversationRead(viewerID, counterpartID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return changed, nil
}

package convo

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/models"
)

// memStore is an in-memory message store with the same visibility rules as
// the real one: reads see current state, and the bulk read-update is scoped
// by the unread predicate at call time.
type memStore struct {
	mu       sync.Mutex
	messages []*models.Message

	failReads bool
	calls     []string
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) add(msg *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *memStore) setFailReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = fail
}

func (s *memStore) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := make([]string, len(s.calls))
	copy(log, s.calls)
	return log
}

func (s *memStore) MessagesForViewer(viewerID uuid.UUID) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "MessagesForViewer")

	if s.failReads {
		return nil, errors.New("connection refused")
	}

	var out []*models.Message
	for _, msg := range s.messages {
		if msg.SenderID == viewerID || msg.RecipientID == viewerID {
			copied := *msg
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *memStore) Thread(viewerID, counterpartID uuid.UUID) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "Thread")

	if s.failReads {
		return nil, errors.New("connection refused")
	}

	var out []*models.Message
	for _, msg := range s.messages {
		pair := (msg.SenderID == viewerID && msg.RecipientID == counterpartID) ||
			(msg.SenderID == counterpartID && msg.RecipientID == viewerID)
		if pair {
			copied := *msg
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *memStore) MarkConversationRead(viewerID, counterpartID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "MarkConversationRead")

	var changed int64
	for _, msg := range s.messages {
		if msg.SenderID == counterpartID && msg.RecipientID == viewerID && !msg.Read {
			msg.Read = true
			changed++
		}
	}
	return changed, nil
}

// exchange seeds a message between two profiles at a fixed offset from base.
func exchange(store *memStore, sender, recipient *models.Profile, content string, read bool, at time.Time) *models.Message {
	msg := testMessage(sender, recipient, content, read, at)
	store.add(msg)
	return msg
}

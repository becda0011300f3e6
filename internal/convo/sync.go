// Package convo is the conversation engine: it derives per-viewer
// conversation lists from the message store, manages read-state
// transitions, and keeps a published view consistent under concurrent
// reconciliation triggers.
package convo

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/feed"
	"github.com/inletchat/inlet/internal/logger"
	"github.com/inletchat/inlet/internal/models"
)

var log = logger.New("convo")

// Store is the slice of the message store the controller needs. The store
// is the single source of truth; every view the controller publishes is
// re-derived from it in full.
type Store interface {
	MessagesForViewer(viewerID uuid.UUID) ([]*models.Message, error)
	Thread(viewerID, counterpartID uuid.UUID) ([]*models.Message, error)
	MarkConversationRead(viewerID, counterpartID uuid.UUID) (int64, error)
}

// Controller keeps one viewer's conversation list consistent with the
// message store. Three triggers funnel into the same full reconciliation:
// the initial load, a locally sent message, and a change-feed event. The
// feed carries no ordering or delivery guarantee, so events are never
// applied incrementally; each one only triggers a re-fetch and re-derive.
//
// Reconciliations may overlap. Each is stamped with a sequence number when
// it starts, and a result is discarded if a reconciliation that started
// later has already published, so a stale fetch can never overwrite a
// fresher view. A failed fetch leaves the last published view in place.
type Controller struct {
	viewerID  uuid.UUID
	store     Store
	readState *ReadStateManager
	feed      feed.Feed

	mutex      sync.Mutex
	nextSeq    uint64
	appliedSeq uint64
	view       []*models.Conversation
	active     uuid.UUID
	thread     []*models.Message
	sub        feed.Subscription
	closed     bool

	updates chan struct{}
}

// NewController creates a controller for the given viewer. The feed may be
// nil, in which case the controller only reconciles on demand.
func NewController(viewerID uuid.UUID, store Store, changeFeed feed.Feed) (*Controller, error) {
	if viewerID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty viewer id", ErrInvalidInput)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidInput)
	}

	return &Controller{
		viewerID:  viewerID,
		store:     store,
		readState: NewReadStateManager(store),
		feed:      changeFeed,
		updates:   make(chan struct{}, 1),
	}, nil
}

// Start subscribes to the change feed and performs the initial load. The
// subscription is taken before the first reconciliation so no insert can
// fall between them; a duplicate trigger only costs a redundant re-derive.
func (c *Controller) Start() error {
	if c.feed != nil {
		sub, err := c.feed.Subscribe(c.viewerID, c.handleEvent)
		if err != nil {
			return err
		}

		c.mutex.Lock()
		if c.closed {
			c.mutex.Unlock()
			sub.Unsubscribe()
			return ErrClosed
		}
		c.sub = sub
		c.mutex.Unlock()
	}

	return c.Reconcile()
}

// Reconcile re-fetches the viewer's full message set, re-derives the
// conversation list, and publishes it unless a fresher reconciliation beat
// it there. The published view is replaced whole or not at all.
func (c *Controller) Reconcile() error {
	seq, err := c.begin()
	if err != nil {
		return err
	}

	messages, err := c.store.MessagesForViewer(c.viewerID)
	if err != nil {
		log.Warn("Reconciliation %d failed for viewer %s, keeping last view: %v", seq, c.viewerID, err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	conversations, err := Aggregate(c.viewerID, messages)
	if err != nil {
		return err
	}

	c.apply(seq, conversations)
	return nil
}

// MessageSent is the local-send trigger: the caller reports that a message
// from the viewer was durably written, and the controller re-derives the
// full view rather than patching it in.
func (c *Controller) MessageSent() error {
	return c.Reconcile()
}

// Conversations returns the currently published conversation list, newest
// first. The entries are shared snapshots; callers must not mutate them.
func (c *Controller) Conversations() []*models.Conversation {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	view := make([]*models.Conversation, len(c.view))
	copy(view, c.view)
	return view
}

// Version returns the sequence number of the published view. It only ever
// increases.
func (c *Controller) Version() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.appliedSeq
}

// Updates signals whenever a new view or thread snapshot is published. The
// channel is never closed and coalesces bursts.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Close unsubscribes from the change feed and discards any reconciliation
// result that resolves afterward.
func (c *Controller) Close() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	c.mutex.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// handleEvent is the remote-push trigger. The event itself is discarded
// after triggering a full reconciliation; if it concerns the open
// conversation, the thread snapshot is refreshed too, with read state left
// for OpenThread to manage.
func (c *Controller) handleEvent(msg *models.Message) {
	if msg == nil {
		return
	}

	if err := c.Reconcile(); err != nil {
		log.Error("Feed-triggered reconciliation failed for viewer %s: %v", c.viewerID, err)
		return
	}

	c.mutex.Lock()
	active := c.active
	c.mutex.Unlock()

	if active == uuid.Nil || msg.CounterpartOf(c.viewerID) != active {
		return
	}

	thread, err := c.store.Thread(c.viewerID, active)
	if err != nil {
		log.Error("Thread refresh failed for viewer %s: %v", c.viewerID, err)
		return
	}

	c.mutex.Lock()
	if !c.closed && c.active == active {
		c.thread = thread
		c.notifyLocked()
	}
	c.mutex.Unlock()
}

// begin stamps a new reconciliation with the next sequence number.
func (c *Controller) begin() (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return 0, ErrClosed
	}
	c.nextSeq++
	return c.nextSeq, nil
}

// apply publishes a reconciliation result under last-writer-wins: a result
// from a reconciliation that started before the currently applied one is
// dropped, as is anything arriving after Close.
func (c *Controller) apply(seq uint64, conversations []*models.Conversation) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed || seq < c.appliedSeq {
		log.Debug("Discarding stale reconciliation %d for viewer %s (applied %d)", seq, c.viewerID, c.appliedSeq)
		return false
	}

	c.appliedSeq = seq
	c.view = conversations
	c.notifyLocked()
	return true
}

func (c *Controller) notifyLocked() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

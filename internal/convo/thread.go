package convo

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/models"
)

// OpenThread opens the conversation with counterpart: it loads the full
// message thread oldest-first, marks the counterpart's unread messages
// read, and then reconciles the conversation list. The steps run strictly
// in that order so the thread is on screen before any unread badge clears;
// if read-marking or the refresh fails the loaded thread is still returned
// alongside the error.
func (c *Controller) OpenThread(counterpartID uuid.UUID) ([]*models.Message, error) {
	if counterpartID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty counterpart id", ErrInvalidInput)
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil, ErrClosed
	}
	c.mutex.Unlock()

	thread, err := c.store.Thread(c.viewerID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return thread, ErrClosed
	}
	c.active = counterpartID
	c.thread = thread
	c.notifyLocked()
	c.mutex.Unlock()

	changed, err := c.readState.MarkRead(c.viewerID, counterpartID)
	if err != nil {
		return thread, err
	}
	if changed > 0 {
		log.Debug("Marked %d messages read for viewer %s in conversation with %s", changed, c.viewerID, counterpartID)
	}

	if err := c.Reconcile(); err != nil {
		return thread, err
	}

	return thread, nil
}

// CloseThread clears the open conversation; subsequent feed events no
// longer refresh a thread snapshot.
func (c *Controller) CloseThread() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.active = uuid.Nil
	c.thread = nil
}

// Thread returns the current snapshot of the open conversation's messages,
// oldest first.
func (c *Controller) Thread() []*models.Message {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	thread := make([]*models.Message, len(c.thread))
	copy(thread, c.thread)
	return thread
}

// ActiveCounterpart returns the id of the open conversation's counterpart,
// or uuid.Nil when none is open.
func (c *Controller) ActiveCounterpart() uuid.UUID {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.active
}

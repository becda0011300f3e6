// Package feed is the change-notification channel for newly inserted
// messages. Subscribers register a recipient-id filter and receive every
// message published for that recipient. The feed makes no ordering or
// delivery guarantee relative to direct store reads; consumers treat events
// as triggers to re-derive state, not as state themselves.
package feed

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/logger"
	"github.com/inletchat/inlet/internal/models"
)

var log = logger.New("feed")

var ErrInvalidRecipient = errors.New("recipient id cannot be empty")

// Handler receives a newly inserted message addressed to the subscribed
// recipient. Handlers run on the publisher's goroutine and should hand off
// quickly.
type Handler func(*models.Message)

// Subscription is a live feed registration.
type Subscription interface {
	// Unsubscribe removes the registration. Safe to call more than once.
	Unsubscribe()
}

// Feed is the subscriber-side contract of the change feed.
type Feed interface {
	Subscribe(recipientID uuid.UUID, fn Handler) (Subscription, error)
}

// Broker is an in-process Feed implementation. The send path publishes each
// message after its durable insert; the broker fans it out to every
// subscriber registered for the message's recipient.
type Broker struct {
	mutex sync.Mutex
	subs  map[uuid.UUID]map[*subscription]struct{}
}

type subscription struct {
	broker      *Broker
	recipientID uuid.UUID
	fn          Handler
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[uuid.UUID]map[*subscription]struct{}),
	}
}

// Subscribe registers fn for messages addressed to recipientID.
func (b *Broker) Subscribe(recipientID uuid.UUID, fn Handler) (Subscription, error) {
	if recipientID == uuid.Nil {
		return nil, ErrInvalidRecipient
	}

	sub := &subscription{broker: b, recipientID: recipientID, fn: fn}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subs[recipientID] == nil {
		b.subs[recipientID] = make(map[*subscription]struct{})
	}
	b.subs[recipientID][sub] = struct{}{}
	log.Debug("Subscriber added for recipient %s", recipientID)

	return sub, nil
}

// Publish delivers msg to every subscriber registered for its recipient.
// Handlers registered after the insert but before Publish still see the
// event; ones that unsubscribed do not.
func (b *Broker) Publish(msg *models.Message) {
	if msg == nil {
		return
	}

	b.mutex.Lock()
	var handlers []Handler
	for sub := range b.subs[msg.RecipientID] {
		handlers = append(handlers, sub.fn)
	}
	b.mutex.Unlock()

	if len(handlers) == 0 {
		log.Debug("No subscribers for recipient %s", msg.RecipientID)
		return
	}

	for _, fn := range handlers {
		fn(msg)
	}
}

func (s *subscription) Unsubscribe() {
	b := s.broker

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if set, ok := b.subs[s.recipientID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.recipientID)
		}
		log.Debug("Subscriber removed for recipient %s", s.recipientID)
	}
}

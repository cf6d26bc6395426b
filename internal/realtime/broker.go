// Package realtime fans live-insert events out to in-process subscribers
// and, when configured, bridges them across replicas via Kafka.
package realtime

import (
	"sync"

	"example.com/spring/internal/gateway"
	"example.com/spring/internal/observability"
)

const subscriptionBuffer = 64

// Broker is the in-process hub behind the gateway's subscribe-to-inserts
// primitive. Publish never blocks; a subscriber that cannot keep up has
// events dropped rather than stalling the publisher.
type Broker struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in inserts on a collection. For the messages
// collection, activityID narrows delivery to one chat room; pass "" for no
// filter.
func (b *Broker) Subscribe(collection, activityID string) *Subscription {
	sub := &Subscription{
		broker:     b,
		collection: collection,
		activityID: activityID,
		events:     make(chan gateway.Event, subscriptionBuffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers an event to every matching subscriber.
func (b *Broker) Publish(evt gateway.Event) {
	observability.RecordLiveEvent(evt.Collection)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.matches(evt) {
			continue
		}
		select {
		case sub.events <- evt:
		default:
			// Slow subscriber; drop instead of blocking the publisher.
		}
	}
}

// Subscription is a single subscriber's event channel. It satisfies
// gateway.Subscription.
type Subscription struct {
	broker     *Broker
	collection string
	activityID string
	events     chan gateway.Event
	once       sync.Once
}

func (s *Subscription) matches(evt gateway.Event) bool {
	if evt.Collection != s.collection {
		return false
	}
	if s.collection == gateway.CollectionMessages && s.activityID != "" {
		return evt.Message != nil && evt.Message.ActivityID == s.activityID
	}
	return true
}

// Events returns the inbound event channel. It is closed by Close.
func (s *Subscription) Events() <-chan gateway.Event { return s.events }

// Close unregisters the subscription and closes its channel. Idempotent.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		s.broker.mu.Unlock()
		close(s.events)
	})
	return nil
}

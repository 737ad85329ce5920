package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/ports"
)

// subscriptionBuffer is how many events a slow subscriber may lag behind
// before new events are dropped for it
const subscriptionBuffer = 64

// ErrBusClosed is returned when subscribing to a closed bus
var ErrBusClosed = errors.New("event bus closed")

type subscription struct {
	id     uint64
	events chan domain.Event
}

// InMemoryEventBus implements EventBus with per-subscriber queues so each
// handler sees events in publish order
type InMemoryEventBus struct {
	subscribers map[string][]*subscription
	nextID      uint64
	closed      bool
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]*subscription),
	}
}

// Publish queues an event for all subscribers of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.subscribers[topic] {
		select {
		case sub.events <- event:
		default:
		}
	}
	return nil
}

// Subscribe delivers events of a topic to handler until ctx is cancelled
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrBusClosed
	}
	e.nextID++
	sub := &subscription{
		id:     e.nextID,
		events: make(chan domain.Event, subscriptionBuffer),
	}
	e.subscribers[topic] = append(e.subscribers[topic], sub)
	e.mu.Unlock()

	go func() {
		defer e.unsubscribe(topic, sub.id)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.events:
				if !ok {
					return
				}
				_ = handler(ctx, event)
			}
		}
	}()

	return nil
}

// Close drops all subscriptions
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			close(sub.events)
		}
	}
	e.subscribers = make(map[string][]*subscription)
	e.closed = true
	return nil
}

// unsubscribe removes a subscription from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			e.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

package service

import "sync"

// Resources carried by events.
const (
	ResourceDataSources = "datasources"
	ResourceBackground  = "background"
)

// Actions carried by events.
const (
	ActionCreated  = "created"
	ActionDeleted  = "deleted"
	ActionVisible  = "visible"
	ActionInRange  = "inRange"
	ActionChanged  = "changed"
	ActionRemoved  = "removed"
	ActionDimensed = "dimensions"
)

// Event represents a resource mutation.
type Event struct {
	Resource string `json:"resource"`       // e.g. "datasources"
	Action   string `json:"action"`         // e.g. "created", "inRange"
	ID       string `json:"id"`             // data source id or map id
	Data     any    `json:"data,omitempty"` // action specific payload
}

// EventBus is a simple fan-out pub/sub for resource change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking). A nil bus drops it.
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

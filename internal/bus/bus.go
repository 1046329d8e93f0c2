package bus

import (
	"slices"
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus. Subscribers name a
// namespace prefix of the dot-separated Kind space; the empty namespace
// receives everything.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
}

type subscription struct {
	id        int
	namespace string
	ch        chan Event
}

func (s subscription) matches(k Kind) bool {
	return strings.HasPrefix(string(k), s.namespace)
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{}
}

// Publish delivers an event to every matching subscriber. Delivery is
// non-blocking: a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(evt.Kind) {
			targets = append(targets, sub.ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel receiving events under the namespace prefix
// and a function that cancels the subscription. bufSize controls how many
// events may queue before delivery starts dropping.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, namespace: namespace, ch: ch})
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
		b.mu.Unlock()
	}
}

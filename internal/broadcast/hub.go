// Package broadcast fans game events out to in-process subscribers and,
// optionally, an operator webhook.
package broadcast

import (
	"sync"

	"skycrash/internal/model"
)

// subscriberBuffer bounds how far a consumer may lag before ticks are
// dropped for it.
const subscriberBuffer = 64

// Hub distributes events to subscriber channels. Publish never blocks: a
// subscriber that cannot keep up loses events rather than stalling the
// coordinator's tick loop.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan model.Event
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan model.Event)}
}

// Subscribe registers a new consumer. The returned cancel func must be
// called when the consumer goes away.
func (h *Hub) Subscribe() (<-chan model.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan model.Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers evt to every subscriber with room in its buffer.
func (h *Hub) Publish(evt model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

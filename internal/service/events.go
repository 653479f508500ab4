package service

import (
	"sync"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

// EventHub fans client events out to the open streams of one browser
// session. A subscriber that falls behind loses events rather than blocking
// the publisher; it can resync from the next state event.
type EventHub struct {
	mu     sync.Mutex
	subs   map[chan domain.ClientEvent]struct{}
	closed bool
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan domain.ClientEvent]struct{})}
}

// Subscribe returns a channel of events and a cancel func. The channel is
// closed by cancel or by Close.
func (h *EventHub) Subscribe(buffer int) (<-chan domain.ClientEvent, func()) {
	ch := make(chan domain.ClientEvent, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (h *EventHub) Publish(ev domain.ClientEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends every stream.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

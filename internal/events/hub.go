package events

import (
	"encoding/json"
	"sync"

	"greendrop/internal/logger"
)

const subscriberBuffer = 32

// Hub fans events out to subscribers. Slow subscribers lose events; the last
// value of each event name is retained and replayed to new subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	last map[string]Event
	log  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subs: make(map[chan Event]struct{}),
		last: make(map[string]Event),
		log:  log,
	}
}

// Subscribe returns a channel primed with the latest event of each name.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	for _, ev := range h.last {
		select {
		case ch <- ev:
		default:
		}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish marshals payload and delivers it without blocking. A nil payload is
// sent as JSON null.
func (h *Hub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorw("publish_marshal_failed", "event", name, "err", err)
		return
	}
	msg := Event{Name: name, Data: b}

	h.mu.Lock()
	h.last[name] = msg
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

// Last returns the retained event for name.
func (h *Hub) Last(name string) (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, ok := h.last[name]
	return ev, ok
}

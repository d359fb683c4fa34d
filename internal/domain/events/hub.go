package events

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultBuffer = 256

// Hub fans events out to subscribers. A subscriber whose buffer is full is
// disconnected: a client that misses an output chunk or the exit event
// cannot reconstruct the session, so it is told to reconnect instead.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	logger *zap.Logger
}

// Subscription is one consumer of a Hub.
type Subscription struct {
	hub        *Hub
	ch         chan Event
	filter     func(Event) bool
	once       sync.Once
	overflowed atomic.Bool
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a consumer. filter may be nil to receive everything.
func (h *Hub) Subscribe(filter func(Event) bool) *Subscription {
	sub := &Subscription{
		hub:    h,
		ch:     make(chan Event, h.buffer),
		filter: filter,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// ForID returns a filter matching events for a single session id.
func ForID(id string) func(Event) bool {
	return func(e Event) bool { return e.ID == id }
}

// Emit delivers e to every matching subscriber without blocking.
func (h *Hub) Emit(e Event) {
	var slow []*Subscription

	h.mu.RLock()
	for sub := range h.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		sub.overflowed.Store(true)
		h.logger.Warn("Subscriber fell behind, disconnecting",
			zap.String("session_id", e.ID),
			zap.Int("buffer", h.buffer))
		sub.Close()
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later Emits are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Events returns the delivery channel. It is closed when the subscription
// ends.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Overflowed reports whether the subscription was dropped for falling behind.
func (s *Subscription) Overflowed() bool {
	return s.overflowed.Load()
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
	s.once.Do(func() { close(s.ch) })
}

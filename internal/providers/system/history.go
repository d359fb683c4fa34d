package system

import (
	"sync"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
)

// History is a thread-safe circular buffer of terminal events: the exit or
// error that ended each session and process. It is an events.Sink; output
// events are ignored.
type History struct {
	entries []events.Event
	head    int
	size    int
	maxSize int
	mu      sync.RWMutex
}

// NewHistory creates a history holding at most maxSize events.
func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &History{
		entries: make([]events.Event, maxSize),
		maxSize: maxSize,
	}
}

// Emit records e if it ends a session or process.
func (h *History) Emit(e events.Event) {
	if !e.Terminal() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = e
	h.head = (h.head + 1) % h.maxSize
	if h.size < h.maxSize {
		h.size++
	}
}

// Recent returns up to limit events, newest first, optionally restricted to
// one source.
func (h *History) Recent(limit int, source events.Source) []events.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > h.size {
		limit = h.size
	}

	result := make([]events.Event, 0, limit)
	for i := 0; i < h.size && len(result) < limit; i++ {
		e := h.entries[(h.head-1-i+h.maxSize)%h.maxSize]
		if source == "" || e.Source == source {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of events held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

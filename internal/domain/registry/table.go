package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound reports an id with no live entry.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a live entry already registered under an id.
	ErrAlreadyExists = errors.New("already exists")
)

// Table maps a client-chosen id to the handles needed to reach a running
// process. One mutex guards the map and is held only for the map operation.
type Table[T any] struct {
	name    string
	mu      sync.Mutex
	entries map[string]T
}

// NewTable creates an empty table. name only appears in error messages.
func NewTable[T any](name string) *Table[T] {
	return &Table[T]{
		name:    name,
		entries: make(map[string]T),
	}
}

// Register inserts v under id, failing if id is already present.
func (t *Table[T]) Register(id string, v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[id]; exists {
		return fmt.Errorf("%s %q: %w", t.name, id, ErrAlreadyExists)
	}
	t.entries[id] = v
	return nil
}

// Lookup returns the entry for id without removing it.
func (t *Table[T]) Lookup(id string) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[id]
	return v, ok
}

// Contains reports whether id is registered.
func (t *Table[T]) Contains(id string) bool {
	_, ok := t.Lookup(id)
	return ok
}

// Remove deletes and returns the entry for id. Removing an absent id is a
// no-op.
func (t *Table[T]) Remove(id string) (T, bool) {
	return t.RemoveFunc(id, nil)
}

// RemoveFunc deletes the entry for id only if match accepts it. A nil match
// accepts any entry. Exit watchers use it so they can only ever remove their
// own entry, never a newer one registered under the same id.
func (t *Table[T]) RemoveFunc(id string, match func(T) bool) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[id]
	if !ok || (match != nil && !match(v)) {
		var zero T
		return zero, false
	}
	delete(t.entries, id)
	return v, true
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// IDs returns the registered ids in sorted order.
func (t *Table[T]) IDs() []string {
	t.mu.Lock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Values returns a snapshot of the entries, ordered by id. Callers act on the
// snapshot outside the lock.
func (t *Table[T]) Values() []T {
	ids := t.IDs()
	values := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := t.Lookup(id); ok {
			values = append(values, v)
		}
	}
	return values
}

// Package correlation tracks requests that are waiting for a reply keyed by
// correlation id. Each entry is handed out at most once.
package correlation

import (
	"errors"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ErrDuplicateID is returned when registering an id that is already pending.
var ErrDuplicateID = errors.New("correlation id already pending")

// Registry maps correlation ids to pending values.
type Registry[T any] struct {
	pending cmap.ConcurrentMap[string, T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{pending: cmap.New[T]()}
}

// Register stores v under id.
func (r *Registry[T]) Register(id string, v T) error {
	if !r.pending.SetIfAbsent(id, v) {
		return ErrDuplicateID
	}
	return nil
}

// Peek returns the pending value without consuming it.
func (r *Registry[T]) Peek(id string) (T, bool) {
	return r.pending.Get(id)
}

// Take removes and returns the value for id. A second Take for the same id
// reports false, so late or duplicate replies are dropped by the caller.
func (r *Registry[T]) Take(id string) (T, bool) {
	return r.pending.Pop(id)
}

// TakeIf removes and returns every entry for which match reports true.
func (r *Registry[T]) TakeIf(match func(id string, v T) bool) map[string]T {
	taken := make(map[string]T)
	for _, id := range r.pending.Keys() {
		v, ok := r.pending.Get(id)
		if !ok || !match(id, v) {
			continue
		}
		if v, ok = r.pending.Pop(id); ok {
			taken[id] = v
		}
	}
	return taken
}

// Any reports whether some pending entry satisfies match.
func (r *Registry[T]) Any(match func(id string, v T) bool) bool {
	for item := range r.pending.IterBuffered() {
		if match(item.Key, item.Val) {
			return true
		}
	}
	return false
}

// Len returns the number of pending entries.
func (r *Registry[T]) Len() int {
	return r.pending.Count()
}

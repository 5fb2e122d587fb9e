package util

import "sync"

// Ring is a bounded FIFO buffer that evicts the oldest element once
// capacity is reached. It is safe for concurrent use.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	cap   int
}

// NewRing creates a ring buffer with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Append adds an item, evicting the oldest one when the ring is full.
func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == r.cap {
		copy(r.items, r.items[1:])
		r.items[len(r.items)-1] = item
		return
	}
	r.items = append(r.items, item)
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot returns a copy of the buffered items, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Tail returns a copy of the newest n items, oldest first. A non-positive
// n returns the full snapshot.
func (r *Ring[T]) Tail(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.items) {
		n = len(r.items)
	}
	out := make([]T, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

// Clear removes all items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	r.items = r.items[:0]
	r.mu.Unlock()
}

package registry

import "sync"

// Ring is a thread-safe fixed-capacity buffer. Appending to a full ring
// evicts the oldest entry, so the newest capacity entries are always
// retained in arrival order.
type Ring[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // oldest entry
	count    int
	capacity int
	evicted  int64
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Append adds an item, evicting the oldest if the ring is full.
func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == r.capacity {
		var zero T
		r.buf[r.head] = zero
		r.head = (r.head + 1) % r.capacity
		r.count--
		r.evicted++
	}

	tail := (r.head + r.count) % r.capacity
	r.buf[tail] = item
	r.count++
}

// Last returns up to n of the newest entries, oldest-first.
func (r *Ring[T]) Last(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}

	out := make([]T, n)
	start := r.head + r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%r.capacity]
	}
	return out
}

// Len returns the number of buffered entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Evicted returns how many entries have been displaced by overflow.
func (r *Ring[T]) Evicted() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

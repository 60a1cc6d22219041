// Package ring provides a fixed-capacity ring buffer used for per-frame
// bookkeeping in the presentation pipeline.
//
// The ring is ordered newest-first: PushFront(v) makes v the element at
// index 0 and shifts everything else up; when the ring is full the oldest
// element is evicted. This matches how frame history is consumed by the
// scheduler, which almost always looks at the most recent few entries.
package ring

// Ring is a fixed-capacity, newest-first ring buffer.
//
// Ring is not safe for concurrent use; the presentation pipeline mutates
// it from a single playback thread only.
type Ring[T any] struct {
	buf   []T
	head  int // index of element 0 (most recent)
	count int
}

// New creates a ring with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Cap returns the fixed capacity of the ring.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.count }

// PushFront inserts v as the newest element (index 0). If the ring is
// full, the oldest element is evicted.
func (r *Ring[T]) PushFront(v T) {
	r.head--
	if r.head < 0 {
		r.head += len(r.buf)
	}
	r.buf[r.head] = v
	if r.count < len(r.buf) {
		r.count++
	}
}

// Get returns the element at index i, where 0 is the newest element and
// Len()-1 the oldest. The second return value is false if i is out of
// range.
func (r *Ring[T]) Get(i int) (T, bool) {
	if i < 0 || i >= r.count {
		var zero T
		return zero, false
	}
	return r.buf[(r.head+i)%len(r.buf)], true
}

// At is like Get but panics on an out-of-range index. Use it where the
// index is already bounds-checked against Len().
func (r *Ring[T]) At(i int) T {
	v, ok := r.Get(i)
	if !ok {
		panic("ring: index out of range")
	}
	return v
}

// Set replaces the element at index i. It reports whether i was in range.
func (r *Ring[T]) Set(i int, v T) bool {
	if i < 0 || i >= r.count {
		return false
	}
	r.buf[(r.head+i)%len(r.buf)] = v
	return true
}

// DropOldest removes the oldest element, if any.
func (r *Ring[T]) DropOldest() {
	if r.count > 0 {
		r.count--
	}
}

// Clear removes all elements. The backing array is reset so that element
// values do not pin memory.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}

package metrics

import "sync"

// Ring is a fixed-capacity buffer that evicts the oldest entry once full.
type Ring[T any] struct {
	mutex sync.RWMutex
	buf   []T
	start int
	size  int
}

// NewRing returns a ring holding at most capacity items. A non-positive
// capacity is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends item, overwriting the oldest entry when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = item
		r.size++
		return
	}

	r.buf[r.start] = item
	r.start = (r.start + 1) % len(r.buf)
}

// Items returns a copy of the retained entries, oldest first.
func (r *Ring[T]) Items() []T {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *Ring[T]) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.size
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

func (r *Ring[T]) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start = 0
	r.size = 0
}

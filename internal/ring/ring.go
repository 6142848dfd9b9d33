// Package ring provides a fixed-capacity FIFO used for move queues and
// serial byte buffers.
package ring

import "github.com/pkg/errors"

// ErrFull is returned when a push would exceed the buffer capacity.
var ErrFull = errors.New("ring buffer full")

// Buffer is a bounded FIFO. It never grows and never overwrites.
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// New creates a buffer holding at most capacity items
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, or returns ErrFull
func (b *Buffer[T]) Push(v T) error {
	if b.size == len(b.items) {
		return ErrFull
	}
	b.items[(b.head+b.size)%len(b.items)] = v
	b.size++
	return nil
}

// PushAll appends every value or none of them
func (b *Buffer[T]) PushAll(vs ...T) error {
	if len(vs) > b.Free() {
		return ErrFull
	}
	for _, v := range vs {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
	}
	return nil
}

// Pop removes and returns the oldest item
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	v := b.items[b.head]
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.size--
	return v, true
}

// Peek returns the i-th oldest item without removing it
func (b *Buffer[T]) Peek(i int) (T, bool) {
	var zero T
	if i < 0 || i >= b.size {
		return zero, false
	}
	return b.items[(b.head+i)%len(b.items)], true
}

// PeekInto copies up to len(dst) of the oldest items into dst and returns
// how many were copied.
func (b *Buffer[T]) PeekInto(dst []T) int {
	n := min(len(dst), b.size)
	for i := 0; i < n; i++ {
		dst[i] = b.items[(b.head+i)%len(b.items)]
	}
	return n
}

// Discard drops up to n of the oldest items
func (b *Buffer[T]) Discard(n int) int {
	n = min(n, b.size)
	for i := 0; i < n; i++ {
		b.Pop()
	}
	return n
}

// Clear empties the buffer
func (b *Buffer[T]) Clear() {
	b.Discard(b.size)
	b.head = 0
}

func (b *Buffer[T]) Len() int  { return b.size }
func (b *Buffer[T]) Cap() int  { return len(b.items) }
func (b *Buffer[T]) Free() int { return len(b.items) - b.size }

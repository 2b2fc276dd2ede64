// Package ring implements a lock-free single-producer/single-consumer ring
// buffer for audio samples and symbols. It is the Go-idiomatic rendering of
// original_source/inc/fifo.h's Fifo<T,size>, but with the producer/consumer
// indices published through atomic load/store (acquire/release ordering)
// instead of being owned by a single thread, per spec.md §5: the producer
// (an ISR/DMA callback) and the consumer (a main loop) may run on different
// goroutines without a mutex.
package ring

import "sync/atomic"

// Buffer is a bounded FIFO of power-of-two capacity. The zero value is not
// usable; construct with New.
type Buffer[T any] struct {
	buf  []T
	mask uint64

	// head/tail are monotonically increasing counts, not indices: the
	// actual slot is head%cap / tail%cap. This lets Available/Full be
	// computed without wraparound special-casing, matching fifo.h's
	// pushed_/popped_ counters.
	head atomic.Uint64 // next slot to pop; written by consumer, read by producer
	tail atomic.Uint64 // next slot to push; written by producer, read by consumer

	overflow atomic.Bool
}

// New constructs a Buffer with the given capacity, which must be a power of
// two.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &Buffer[T]{
		buf:  make([]T, capacity),
		mask: uint64(capacity - 1),
	}
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.buf) }

// Available returns the number of items ready to be popped.
func (b *Buffer[T]) Available() int {
	return int(b.tail.Load() - b.head.Load())
}

// Full reports whether the buffer has no room for another push.
func (b *Buffer[T]) Full() bool {
	return b.Available() == len(b.buf)
}

// Overflow reports whether a Push has ever failed since the last Flush.
func (b *Buffer[T]) Overflow() bool {
	return b.overflow.Load()
}

// Push appends a single item. It never blocks: if the buffer is full it
// returns false and sets the overflow flag, mirroring spec.md §5 ("Push
// never waits — a full buffer causes the producer to raise overflow").
// Safe to call from the producer goroutine only.
func (b *Buffer[T]) Push(x T) bool {
	tail := b.tail.Load()
	head := b.head.Load() // acquire: synchronizes with the consumer's Pop
	if tail-head == uint64(len(b.buf)) {
		b.overflow.Store(true)
		return false
	}
	b.buf[tail&b.mask] = x
	b.tail.Store(tail + 1) // release: publishes the write to the consumer
	return true
}

// PushAll pushes every element of xs, all-or-nothing: if there is not
// enough room for the whole slice, nothing is pushed and it returns false
// (setting the overflow flag).
func (b *Buffer[T]) PushAll(xs []T) bool {
	tail := b.tail.Load()
	head := b.head.Load()
	if uint64(len(xs)) > uint64(len(b.buf))-(tail-head) {
		b.overflow.Store(true)
		return false
	}
	for _, x := range xs {
		b.buf[tail&b.mask] = x
		tail++
	}
	b.tail.Store(tail)
	return true
}

// Pop removes and returns the oldest item. The second return value is false
// if the buffer was empty. Safe to call from the consumer goroutine only.
func (b *Buffer[T]) Pop() (T, bool) {
	head := b.head.Load()
	tail := b.tail.Load() // acquire: synchronizes with the producer's Push
	var zero T
	if head == tail {
		return zero, false
	}
	x := b.buf[head&b.mask]
	b.head.Store(head + 1) // release: frees the slot for the producer
	return x, true
}

// Peek returns the oldest item without removing it.
func (b *Buffer[T]) Peek() (T, bool) {
	head := b.head.Load()
	tail := b.tail.Load()
	var zero T
	if head == tail {
		return zero, false
	}
	return b.buf[head&b.mask], true
}

// Flush discards all buffered items and clears the overflow flag. It is not
// safe to call concurrently with Push or Pop — it is meant for use by the
// consumer while the producer is known to be idle (e.g. between sessions).
func (b *Buffer[T]) Flush() {
	b.head.Store(b.tail.Load())
	b.overflow.Store(false)
}

// Package window implements fixed-length running-sum windows and matrices
// of windows ("bays"), the running accumulators the carrier-rejection
// filter, the correlator, and the demodulator's timing-adjust logic are all
// built on. Grounded on original_source/inc/window.h and delay_line.h, with
// the floating-point drift guard spec.md §3 calls for: the running sum is
// rebuilt from scratch every Length writes.
package window

import "golang.org/x/exp/constraints"

// Number is any type a running sum makes sense over.
type Number interface {
	constraints.Float | constraints.Integer
}

// Window holds the last N writes with an O(1) running sum. Index 0 is the
// most recent write, N-1 is the oldest.
type Window[T Number] struct {
	buf     []T
	head    int
	sum     T
	written uint64
}

// New allocates a Window of the given length.
func New[T Number](length int) *Window[T] {
	if length <= 0 {
		panic("window: length must be positive")
	}
	w := &Window[T]{buf: make([]T, length)}
	return w
}

// Len returns the window's fixed length.
func (w *Window[T]) Len() int { return len(w.buf) }

// Reset clears the window to all zeros.
func (w *Window[T]) Reset() {
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.head = 0
	w.sum = 0
	w.written = 0
}

// Write pushes a new sample, evicting the oldest. The running sum is
// maintained incrementally except every Len() writes, when it is
// recomputed from the buffer contents to bound floating-point drift.
func (w *Window[T]) Write(x T) {
	n := len(w.buf)
	oldest := w.buf[w.head]
	w.buf[w.head] = x
	w.head = (w.head + 1) % n
	w.sum += x - oldest
	w.written++
	if w.written%uint64(n) == 0 {
		w.rebuildSum()
	}
}

func (w *Window[T]) rebuildSum() {
	var sum T
	for _, v := range w.buf {
		sum += v
	}
	w.sum = sum
}

// At returns the i-th most recent write (0 is the most recent). Undefined
// for i >= Len().
func (w *Window[T]) At(i int) T {
	n := len(w.buf)
	idx := (w.head - 1 - i + 2*n) % n
	return w.buf[idx]
}

// Sum returns the running sum of all elements currently in the window.
func (w *Window[T]) Sum() T { return w.sum }

// Average returns Sum() / Len().
func (w *Window[T]) Average() T { return w.sum / T(len(w.buf)) }

// Bay chains Width windows of Length each so that the oldest element
// evicted from window i feeds window i+1; the total delay span is
// Length*Width.
type Bay[T Number] struct {
	windows []*Window[T]
	sum     T
}

// NewBay allocates a Bay of width windows, each of the given length.
func NewBay[T Number](length, width int) *Bay[T] {
	if width <= 0 {
		panic("window: width must be positive")
	}
	b := &Bay[T]{windows: make([]*Window[T], width)}
	for i := range b.windows {
		b.windows[i] = New[T](length)
	}
	return b
}

// Reset clears every window in the bay.
func (b *Bay[T]) Reset() {
	for _, w := range b.windows {
		w.Reset()
	}
	b.sum = 0
}

// Write cascades x through window 0, shifting each window's oldest element
// into the next window.
func (b *Bay[T]) Write(x T) {
	b.sum += x
	in := x
	last := b.windows[len(b.windows)-1]
	evicted := last.At(last.Len() - 1)
	for _, w := range b.windows {
		out := w.At(w.Len() - 1)
		w.Write(in)
		in = out
	}
	b.sum -= evicted
}

// At returns the i-th window in the bay (0 is the one fed directly by
// Write).
func (b *Bay[T]) At(i int) *Window[T] { return b.windows[i] }

// Width returns the number of windows in the bay.
func (b *Bay[T]) Width() int { return len(b.windows) }

// Length returns the per-window length.
func (b *Bay[T]) Length() int { return b.windows[0].Len() }

// Sum returns the running sum across all windows in the bay.
func (b *Bay[T]) Sum() T { return b.sum }

// Average returns Sum() / (Length*Width).
func (b *Bay[T]) Average() T { return b.sum / T(b.Length()*b.Width()) }

package sharedbuffer

import "sync/atomic"

// ReadHandle is a loan of one slot for reading.
//
// Value returns a copy of the slot's value, never a pointer into the slot, so
// the handle cannot be used to replace the stored buffer. Buffer types that
// carry storage (frame.ImageBuffer, frame.TensorBuffer) still alias their
// elements through the copy. Readers use their copying accessors (At,
// CopyPixels, CopyData) and MUST NOT write through Pixels or Data.
//
// A handle must be released exactly once. Release is idempotent, so
// "defer h.Release()" right after acquiring is always safe.
type ReadHandle[T any] struct {
	pool     *Pool[T]
	index    int
	value    *T
	released atomic.Bool
}

// Index returns the slot index this handle holds.
func (h *ReadHandle[T]) Index() int { return h.index }

// Value returns a copy of the slot's value.
// Panics if the handle was already released.
func (h *ReadHandle[T]) Value() T {
	if h.released.Load() {
		panic("sharedbuffer: use of released read handle")
	}
	return *h.value
}

// Release returns the slot to the pool. Freshness is unchanged.
func (h *ReadHandle[T]) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.pool.releaseRead(h.index)
}

// WriteHandle is an exclusive loan of one slot for writing.
//
// Release commits the write: the slot becomes the freshest in the pool.
// Abort gives the slot back without publishing it, for writers that failed
// halfway (e.g. a camera error). Readers never see an aborted slot.
type WriteHandle[T any] struct {
	pool     *Pool[T]
	index    int
	value    *T
	released atomic.Bool
}

// Index returns the slot index this handle holds.
func (h *WriteHandle[T]) Index() int { return h.index }

// Value returns a pointer to the slot's value, valid until release.
// Panics if the handle was already released.
func (h *WriteHandle[T]) Value() *T {
	if h.released.Load() {
		panic("sharedbuffer: use of released write handle")
	}
	return h.value
}

// Release commits the write and returns the slot to the pool.
func (h *WriteHandle[T]) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.pool.releaseWrite(h.index)
}

// Abort returns the slot to the pool without committing. The slot is hidden
// from readers until it is written again. No-op after Release or Abort.
func (h *WriteHandle[T]) Abort() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.pool.abortWrite(h.index)
}

// Package unified provides contiguous element buffers shared between host
// and accelerator.
//
// The allocation itself is delegated to an Allocator. The default
// HostAllocator backs items with ordinary Go memory, which is what a CPU-only
// build (and every test) uses. Accelerator builds install an allocator that
// maps unified memory and hands back a slice over it.
//
// Items never grow: the element count fixed at construction is the capacity
// for the item's lifetime.
package unified

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrAllocation is wrapped by every allocation failure.
var ErrAllocation = errors.New("unified: allocation failed")

// Element is the set of element types an Item can hold.
type Element interface {
	~uint8 | ~float32
}

// Allocator reserves contiguous memory for n elements of size elemSize bytes.
//
// Implementations must return a slice of exactly n*elemSize bytes, or an error.
// Returned memory must stay valid until Free is called with the same slice.
type Allocator interface {
	Alloc(n, elemSize int) ([]byte, error)
	Free(buf []byte)
}

// HostAllocator allocates from the Go heap. MaxBytes, when non-zero, caps
// a single allocation (used to model devices with a small unified region).
type HostAllocator struct {
	MaxBytes int
}

// Alloc implements Allocator.
func (h HostAllocator) Alloc(n, elemSize int) ([]byte, error) {
	if n < 0 || elemSize <= 0 {
		return nil, fmt.Errorf("%w: invalid request n=%d elem_size=%d", ErrAllocation, n, elemSize)
	}
	size := n * elemSize
	if h.MaxBytes > 0 && size > h.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrAllocation, size, h.MaxBytes)
	}
	return make([]byte, size), nil
}

// Free implements Allocator. Host memory is reclaimed by the garbage collector.
func (HostAllocator) Free([]byte) {}

var (
	allocMu      sync.RWMutex
	allocDefault Allocator = HostAllocator{}
)

// SetAllocator replaces the process allocator and returns the previous one.
// It is meant to be called once during startup, before any item is created.
func SetAllocator(a Allocator) Allocator {
	allocMu.Lock()
	defer allocMu.Unlock()
	prev := allocDefault
	allocDefault = a
	return prev
}

func currentAllocator() Allocator {
	allocMu.RLock()
	defer allocMu.RUnlock()
	return allocDefault
}

// Item is a fixed-length, contiguous buffer of elements.
//
// The zero value is an empty item. Copying an Item value aliases the same
// memory; use Clone for an independent copy.
type Item[E Element] struct {
	raw   []byte
	elems []E
	alloc Allocator
}

// New allocates an item of n elements with the process allocator.
func New[E Element](n int) (Item[E], error) {
	return NewWith[E](currentAllocator(), n)
}

// NewWith allocates an item of n elements with a.
func NewWith[E Element](a Allocator, n int) (Item[E], error) {
	var zero E
	elemSize := int(unsafe.Sizeof(zero))

	raw, err := a.Alloc(n, elemSize)
	if err != nil {
		return Item[E]{}, err
	}
	if len(raw) != n*elemSize {
		a.Free(raw)
		return Item[E]{}, fmt.Errorf("%w: allocator returned %d bytes, want %d", ErrAllocation, len(raw), n*elemSize)
	}

	item := Item[E]{raw: raw, alloc: a}
	if n > 0 {
		item.elems = unsafe.Slice((*E)(unsafe.Pointer(unsafe.SliceData(raw))), n)
	}
	return item, nil
}

// Len returns the element count.
func (it Item[E]) Len() int { return len(it.elems) }

// Slice returns the elements. The slice aliases the item's memory.
func (it Item[E]) Slice() []E { return it.elems }

// Bytes returns the raw backing bytes.
func (it Item[E]) Bytes() []byte { return it.raw }

// Clone allocates a new item from the same allocator and copies every element.
func (it Item[E]) Clone() (Item[E], error) {
	a := it.alloc
	if a == nil {
		a = currentAllocator()
	}
	out, err := NewWith[E](a, it.Len())
	if err != nil {
		return Item[E]{}, err
	}
	copy(out.elems, it.elems)
	return out, nil
}

// Free returns the memory to its allocator. The item must not be used after.
func (it *Item[E]) Free() {
	if it.alloc != nil && it.raw != nil {
		it.alloc.Free(it.raw)
	}
	*it = Item[E]{}
}

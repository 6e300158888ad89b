package sharedbuffer

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer/internal"
)

// Cloner is implemented by buffer types that can produce an independent deep
// copy of themselves. frame.ImageBuffer and frame.TensorBuffer satisfy it.
type Cloner[T any] interface {
	Clone() (T, error)
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	name string
}

// WithName names the pool in logs, stats and capacity errors.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Pool is a fixed set of slots with freshness-biased selection.
//
// Readers get the unoccupied slot written most recently. Writers get the
// unoccupied slot written least recently. A slow reader may see the same data
// twice, and a fast writer may overwrite data nobody read: both are intended
// for live sensor data where only the latest observation matters.
//
// Thread-safety: all methods are safe for concurrent use. A handle belongs to
// the goroutine that acquired it until released.
type Pool[T any] struct {
	name  string
	dir   *internal.Directory
	slots []*internal.Slot[T]

	readAcquires  atomic.Uint64
	writeAcquires atomic.Uint64
	writeCommits  atomic.Uint64
	writeAborts   atomic.Uint64
}

// New builds a pool of n slots, calling factory once per slot.
//
// Returns ErrInvalidSlotCount if n <= 0, or the first factory error.
func New[T any](n int, factory func() (T, error), opts ...Option) (*Pool[T], error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidSlotCount, n)
	}

	values := make([]T, n)
	for i := range values {
		v, err := factory()
		if err != nil {
			return nil, fmt.Errorf("sharedbuffer: construct slot %d: %w", i, err)
		}
		values[i] = v
	}

	return newPool(values, opts), nil
}

// NewDefault builds a pool of n zero-valued slots.
func NewDefault[T any](n int, opts ...Option) (*Pool[T], error) {
	return New(n, func() (T, error) {
		var zero T
		return zero, nil
	}, opts...)
}

// NewFromTemplate builds a pool of n slots, each a deep clone of template.
func NewFromTemplate[T Cloner[T]](n int, template T, opts ...Option) (*Pool[T], error) {
	return New(n, template.Clone, opts...)
}

// NewFromSlice builds a pool with one slot per item, each a deep clone.
// The caller keeps ownership of items.
func NewFromSlice[T Cloner[T]](items []T, opts ...Option) (*Pool[T], error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w (got 0 items)", ErrInvalidSlotCount)
	}

	i := 0
	return New(len(items), func() (T, error) {
		v, err := items[i].Clone()
		i++
		return v, err
	}, opts...)
}

func newPool[T any](values []T, opts []Option) *Pool[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[T]{
		name:  o.name,
		dir:   internal.NewDirectory(len(values)),
		slots: make([]*internal.Slot[T], len(values)),
	}
	for i, v := range values {
		p.slots[i] = internal.NewSlot(v)
	}

	slog.Debug("sharedbuffer: pool created",
		"pool", p.name,
		"slots", len(values),
		"type", fmt.Sprintf("%T", values[0]),
	)
	return p
}

// Name returns the pool name given with WithName.
func (p *Pool[T]) Name() string { return p.name }

// Len returns the number of slots.
func (p *Pool[T]) Len() int { return len(p.slots) }

// AcquireRead lends the freshest unoccupied slot for reading.
//
// Algorithm:
//  1. Directory lock: pick min-freshness unoccupied slot, mark occupied
//  2. Directory unlock
//  3. Take the slot's content lock
//
// Never waits for a slot to free up. Panics with *CapacityError if all slots
// are occupied.
func (p *Pool[T]) AcquireRead() *ReadHandle[T] {
	index := p.choose(p.dir.ChooseForRead, "read")
	value := p.slots[index].Lock()
	p.readAcquires.Add(1)
	return &ReadHandle[T]{pool: p, index: index, value: value}
}

// AcquireWrite lends the stalest unoccupied slot for writing.
//
// Same algorithm as AcquireRead with max-freshness selection. Panics with
// *CapacityError if all slots are occupied.
func (p *Pool[T]) AcquireWrite() *WriteHandle[T] {
	index := p.choose(p.dir.ChooseForWrite, "write")
	value := p.slots[index].Lock()
	p.writeAcquires.Add(1)
	return &WriteHandle[T]{pool: p, index: index, value: value}
}

// ReleaseRead consumes h. Equivalent to h.Release().
func (p *Pool[T]) ReleaseRead(h *ReadHandle[T]) {
	p.mustOwn(h.pool)
	h.Release()
}

// ReleaseWrite consumes h, committing the write. Equivalent to h.Release().
func (p *Pool[T]) ReleaseWrite(h *WriteHandle[T]) {
	p.mustOwn(h.pool)
	h.Release()
}

// Read lends the freshest slot to fn and releases it when fn returns or
// panics. fn receives a copy of the slot value.
func (p *Pool[T]) Read(fn func(T) error) error {
	h := p.AcquireRead()
	defer h.Release()
	return fn(h.Value())
}

// Write lends the stalest slot to fn.
//
// If fn returns nil the write is committed (the slot becomes the freshest).
// If fn returns an error or panics the write is aborted: the slot is given
// back marked partial. Readers skip it and the next writer reuses it.
func (p *Pool[T]) Write(fn func(*T) error) error {
	h := p.AcquireWrite()
	committed := false
	defer func() {
		if committed {
			h.Release()
		} else {
			h.Abort()
		}
	}()

	if err := fn(h.Value()); err != nil {
		return err
	}
	committed = true
	return nil
}

func (p *Pool[T]) choose(pick func() (int, error), role string) int {
	index, err := pick()
	if err != nil {
		capErr := &CapacityError{Pool: p.name, Role: role, Slots: len(p.slots)}
		slog.Error("sharedbuffer: capacity exhausted, pool is undersized",
			"pool", p.name,
			"role", role,
			"slots", len(p.slots),
		)
		panic(capErr)
	}
	return index
}

// Content lock is dropped before the directory update, matching acquire
// order in reverse.
func (p *Pool[T]) releaseRead(index int) {
	p.slots[index].Unlock()
	p.dir.ReleaseRead(index)
}

func (p *Pool[T]) releaseWrite(index int) {
	p.slots[index].Unlock()
	p.dir.ReleaseWrite(index)
	p.writeCommits.Add(1)
}

func (p *Pool[T]) abortWrite(index int) {
	p.slots[index].Unlock()
	p.dir.AbortWrite(index)
	p.writeAborts.Add(1)
}

func (p *Pool[T]) mustOwn(owner *Pool[T]) {
	if owner != p {
		panic("sharedbuffer: handle released to a different pool")
	}
}

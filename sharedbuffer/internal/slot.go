package internal

import "sync"

// Slot owns one buffer behind an exclusive content lock.
//
// The lock is taken after the directory has reserved the slot, so in a
// correct program it is uncontended.
type Slot[T any] struct {
	mu    sync.Mutex
	value T
}

// NewSlot wraps v.
func NewSlot[T any](v T) *Slot[T] {
	return &Slot[T]{value: v}
}

// Lock takes the content lock and returns the guarded value.
func (s *Slot[T]) Lock() *T {
	s.mu.Lock()
	return &s.value
}

// Unlock drops the content lock.
func (s *Slot[T]) Unlock() {
	s.mu.Unlock()
}

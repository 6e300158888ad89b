package sharedbuffer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSlotCount is returned when a pool is built with no slots.
	ErrInvalidSlotCount = errors.New("sharedbuffer: slot count must be > 0")

	// ErrCapacityExhausted is wrapped by CapacityError.
	ErrCapacityExhausted = errors.New("sharedbuffer: capacity exhausted")
)

// CapacityError is the panic value raised when an acquire finds every slot
// occupied.
//
// This is a sizing bug, not a runtime condition: the pool must have more
// slots than the maximum number of handles the application can hold at once.
// It is raised as a panic so that it cannot be branched on and ignored.
type CapacityError struct {
	// Pool is the pool name (WithName), empty if unnamed
	Pool string
	// Role is "read" or "write"
	Role string
	// Slots is the pool size
	Slots int
}

func (e *CapacityError) Error() string {
	name := e.Pool
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("sharedbuffer: capacity exhausted: pool %q has all %d slots occupied on %s acquire", name, e.Slots, e.Role)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExhausted }

// Package internal implements the shared buffer pool's two lock tiers.
//
// This package is INTERNAL - clients MUST use the public API in the parent package.
package internal

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoFreeSlot is returned when every slot is occupied at selection time.
var ErrNoFreeSlot = errors.New("no unoccupied slot")

// Directory tracks freshness and occupancy for every slot of a pool.
//
// Lock discipline:
//   - mu is held only for the O(N) selection or update step
//   - mu is never held while a caller uses a slot's contents
//   - mu is never held while taking a slot's content lock
//
// The directory is the single authority on custody. A slot's content lock
// is a secondary safety net.
type Directory struct {
	mu    sync.Mutex
	slots []SlotInfo
}

// NewDirectory creates a directory for n unoccupied slots with freshness 0.
func NewDirectory(n int) *Directory {
	return &Directory{slots: make([]SlotInfo, n)}
}

// Len returns the number of tracked slots.
func (d *Directory) Len() int { return len(d.slots) }

// ChooseForRead reserves the unoccupied slot holding the freshest data.
//
// Selection: minimum Freshness among unoccupied, non-partial slots, ties
// broken by the lowest index. The chosen slot is marked occupied before
// returning.
func (d *Directory) ChooseForRead() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	best := -1
	for i, s := range d.slots {
		if s.Occupied || s.Partial {
			continue
		}
		if best < 0 || s.Freshness < d.slots[best].Freshness {
			best = i
		}
	}
	if best < 0 {
		return -1, ErrNoFreeSlot
	}

	d.slots[best].Occupied = true
	return best, nil
}

// ChooseForWrite reserves the unoccupied slot holding the stalest data.
//
// Selection: a partial slot if any is unoccupied, otherwise maximum
// Freshness among unoccupied slots. Ties are broken by the lowest index.
// The chosen slot is marked occupied before returning.
//
// Reusing partial slots first bounds them: partial slots plus slots held
// by writers never exceed the number of concurrent writers.
func (d *Directory) ChooseForWrite() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	best := -1
	for i, s := range d.slots {
		if s.Occupied {
			continue
		}
		if best < 0 || staler(s, d.slots[best]) {
			best = i
		}
	}
	if best < 0 {
		return -1, ErrNoFreeSlot
	}

	d.slots[best].Occupied = true
	return best, nil
}

// ReleaseRead clears occupancy of index. Reading does not age data, so
// freshness is untouched.
func (d *Directory) ReleaseRead(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mustBeOccupied(index)
	d.slots[index].Occupied = false
}

// ReleaseWrite marks index as the freshest slot and clears its occupancy.
//
// Every other slot ages by one, held or not: a slot held for reading
// still contains data that just became one write older.
func (d *Directory) ReleaseWrite(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mustBeOccupied(index)
	for i := range d.slots {
		d.slots[i].Freshness++
	}
	d.slots[index].Freshness = 0
	d.slots[index].Occupied = false
	d.slots[index].Partial = false
}

// AbortWrite clears occupancy of index and marks its contents partial.
// Freshness is untouched. The slot stays hidden from readers until a
// later ReleaseWrite.
func (d *Directory) AbortWrite(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mustBeOccupied(index)
	d.slots[index].Occupied = false
	d.slots[index].Partial = true
}

// Snapshot returns a copy of all slot metadata.
func (d *Directory) Snapshot() []SlotInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]SlotInfo, len(d.slots))
	copy(out, d.slots)
	return out
}

// staler reports whether a should be overwritten before b.
func staler(a, b SlotInfo) bool {
	if a.Partial != b.Partial {
		return a.Partial
	}
	return a.Freshness > b.Freshness
}

// mustBeOccupied panics on a release that does not match an outstanding
// reservation. Caller holds d.mu.
func (d *Directory) mustBeOccupied(index int) {
	if index < 0 || index >= len(d.slots) {
		panic(fmt.Sprintf("sharedbuffer: release of slot %d out of range [0,%d)", index, len(d.slots)))
	}
	if !d.slots[index].Occupied {
		panic(fmt.Sprintf("sharedbuffer: release of unoccupied slot %d", index))
	}
}

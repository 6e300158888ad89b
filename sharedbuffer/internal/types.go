package internal

// SlotInfo is the directory metadata for one pool position.
type SlotInfo struct {
	// Freshness counts write-releases of other slots since this slot was
	// last written. 0 = freshest.
	Freshness uint64

	// Occupied is true while a handle for this slot is outstanding.
	Occupied bool

	// Partial is true after an aborted write until the slot is written
	// again. Readers never receive a partial slot.
	Partial bool
}

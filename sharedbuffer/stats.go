package sharedbuffer

// SlotStats is a snapshot of one slot's directory entry.
type SlotStats struct {
	Index     int    `msgpack:"index" json:"index"`
	Freshness uint64 `msgpack:"freshness" json:"freshness"`
	Occupied  bool   `msgpack:"occupied" json:"occupied"`
	Partial   bool   `msgpack:"partial" json:"partial"`
}

// Stats is a snapshot of pool state.
type Stats struct {
	// Name of the pool (WithName)
	Name string `msgpack:"name" json:"name"`

	// Slots in index order
	Slots []SlotStats `msgpack:"slots" json:"slots"`

	// Occupied counts slots with an outstanding handle.
	// Sustained Occupied == len(Slots)-1 means the pool is at its sizing limit.
	Occupied int `msgpack:"occupied" json:"occupied"`

	// ReadAcquires is the lifetime count of read handles issued
	ReadAcquires uint64 `msgpack:"read_acquires" json:"read_acquires"`

	// WriteAcquires is the lifetime count of write handles issued
	WriteAcquires uint64 `msgpack:"write_acquires" json:"write_acquires"`

	// WriteCommits counts writes released with Release
	WriteCommits uint64 `msgpack:"write_commits" json:"write_commits"`

	// WriteAborts counts writes given back with Abort
	WriteAborts uint64 `msgpack:"write_aborts" json:"write_aborts"`
}

// Stats returns a snapshot of directory state and counters.
//
// Thread-safety: safe for concurrent calls. Slot entries are consistent with
// each other; counters may be slightly ahead or behind them.
func (p *Pool[T]) Stats() Stats {
	infos := p.dir.Snapshot()

	stats := Stats{
		Name:          p.name,
		Slots:         make([]SlotStats, len(infos)),
		ReadAcquires:  p.readAcquires.Load(),
		WriteAcquires: p.writeAcquires.Load(),
		WriteCommits:  p.writeCommits.Load(),
		WriteAborts:   p.writeAborts.Load(),
	}
	for i, info := range infos {
		stats.Slots[i] = SlotStats{
			Index:     i,
			Freshness: info.Freshness,
			Occupied:  info.Occupied,
			Partial:   info.Partial,
		}
		if info.Occupied {
			stats.Occupied++
		}
	}
	return stats
}

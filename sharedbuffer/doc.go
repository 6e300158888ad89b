// Package sharedbuffer implements a fixed-size pool of mutually exclusive
// buffers shared between the stages of a live perception pipeline.
//
// # Philosophy
//
// "Newest for readers, stalest for writers. Never queue."
//
// A camera producing at 30fps and a detector consuming at 5fps do not need a
// queue between them: the detector only ever wants the most recent image. The
// pool is an N-way generalization of double/triple buffering. Producers
// overwrite the oldest data, consumers read the newest, and nobody waits for
// "the next item".
//
// # Architecture
//
//	                 ┌────────────── Slot Directory (1 mutex) ──────────────┐
//	AcquireWrite ──→ │ partial first, else max freshness → mark occupied    │
//	AcquireRead  ──→ │ min freshness, not partial → mark occupied           │
//	                 └──────────────────────────────────────────────────────┘
//	                       │ index
//	                       ▼
//	                 Slot[index] content mutex (held for the whole loan)
//
// Freshness counts write-releases of other slots since a slot was last
// written: 0 means "just written". ReleaseWrite on slot i sets freshness[i]
// to 0 and increments every other slot's counter. ReleaseRead leaves
// freshness alone.
//
// An aborted write leaves its slot partial: readers skip it, and the next
// writer takes it before any other slot. Partial slots plus slots held by
// writers never exceed the number of writers, so sizing is unchanged.
//
// The directory lock is held for O(N) per operation and never while a caller
// uses a buffer, so directory hold time is independent of how long a stage
// keeps a slot.
//
// # Basic Usage
//
// Producer (camera capture):
//
//	pool, err := sharedbuffer.NewFromTemplate(4, template)
//	if err != nil {
//	    return err
//	}
//
//	err = pool.Write(func(img *frame.ImageBuffer) error {
//	    return cam.Capture(img)  // error → write aborted, not published
//	})
//
// Consumer (inference):
//
//	err := pool.Read(func(img frame.ImageBuffer) error {
//	    return detect(img)
//	})
//
// Manual handles are available when the loan spans more than one call:
//
//	h := pool.AcquireWrite()
//	defer h.Release()
//
// # Sizing Precondition
//
// Acquire never waits. If every slot is occupied the pool panics with
// *CapacityError. The integrator MUST size the pool with more slots than the
// maximum number of handles that can be outstanding at once (e.g. 1 producer
// + 2 consumers holding one handle each → at least 4 slots).
//
// Exhaustion is a configuration bug to be fixed at sizing time, not a
// condition to branch on at runtime.
//
// # Drop Semantics
//
//   - A slow reader may read the same slot repeatedly (unchanged data)
//   - A fast writer may overwrite data no reader ever saw
//
// Both are intended. The pool does not guarantee ordering or delivery.
//
// # Release Guarantees
//
// Read and Write release on every exit path, including panics. Handles from
// AcquireRead/AcquireWrite must be released explicitly; Release is idempotent
// so "defer h.Release()" is always safe. A handle that is never released
// orphans its slot for the life of the pool.
//
// Read handles only expose a copy of the slot value. Write handles expose a
// pointer. Readers MUST NOT mutate element storage reached through the copy.
//
// # Thread Safety
//
// All Pool methods are safe for concurrent use by any number of producers and
// consumers.
package sharedbuffer

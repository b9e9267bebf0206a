// Package segment implements one independently-lockable shard of a striped
// map: a hash table with open-chaining buckets, expansion, and the
// reclamation engine that keeps the table consistent with a host runtime's
// garbage collection of weakly-referenced keys and values.
//
// Chains are singly linked and append-at-head; a node's next pointer is
// fixed at construction and never mutated, so a reader holding a reference
// to some node can keep walking the rest of the chain safely even while a
// writer concurrently rebuilds the head (spec §4.3). This mirrors the
// listr0ng ConcurrentMap port and the stdlib's own sync.Map read path, both
// of which rely on the same "next never changes" invariant for lock-free
// reads.
package segment

import (
	"sync/atomic"

	"github.com/gostriped/stripedmap/refcell"
)

// Entry is one node in a bucket chain. hash, next and keyRef are fixed at
// construction; valueRef is the sole mutable field, replaced wholesale by
// an atomic pointer swap so a concurrent reader always observes either the
// old or the new value slot, never a partial write.
type Entry[K comparable, V any] struct {
	hash          uint64
	next          *Entry[K, V]
	keyRef        refcell.Cell[K]
	keyGeneration uint64

	valueRef atomic.Pointer[valueSlot[V]]
}

// valueSlot bundles a value cell with the generation it was installed
// under. A weak value cell's cleanup closes over the generation at the
// moment it was armed; every later setValue installs a slot with a fresh
// generation (and clearValue removes the slot), so a notification whose
// token doesn't match the current slot's generation refers to a cell that
// has already been replaced and is ignored (see
// Entry.noteMatchesGeneration).
type valueSlot[V any] struct {
	cell       refcell.Cell[V]
	generation uint64
}

// Hash returns the entry's pre-mixed hash, computed once at construction
// and never recomputed.
func (e *Entry[K, V]) Hash() uint64 { return e.hash }

// Next returns the immutable next pointer.
func (e *Entry[K, V]) Next() *Entry[K, V] { return e.next }

// Key returns the entry's key and whether it is still present (always true
// for strong keys; may be false for a weak key the host runtime reclaimed).
func (e *Entry[K, V]) Key() (K, bool) {
	return e.keyRef.Get()
}

// Value returns the entry's current value and whether it is still present.
func (e *Entry[K, V]) Value() (V, bool) {
	slot := e.valueRef.Load()
	if slot == nil {
		var zero V
		return zero, false
	}
	return slot.cell.Get()
}

// generation returns the generation the current value slot was installed
// under, or 0 if no slot has ever been installed (shouldn't happen for a
// live entry, but newEntry always installs a slot so this is defensive).
func (e *Entry[K, V]) generation() uint64 {
	slot := e.valueRef.Load()
	if slot == nil {
		return 0
	}
	return slot.generation
}

// keyNoteMatches reports whether a key-drain notification carrying
// generation g still refers to this entry's key cell. Unlike the value
// slot's generation, keyGeneration is fixed at construction: a key cell is
// never replaced in place, only the whole entry is ever dropped and
// recreated, so there is no "stale vs current" drift to track here beyond
// the entry having already been pruned by an earlier rebuild.
func (e *Entry[K, V]) keyNoteMatches(g uint64) bool {
	return e.keyGeneration == g
}

// Live reports whether both the key and the value are currently present.
// A non-live entry is "collected" and awaits removal via the chain-rebuild
// protocol (spec §4.3's "An entry is live iff...").
func (e *Entry[K, V]) Live() bool {
	if _, ok := e.Key(); !ok {
		return false
	}
	_, ok := e.Value()
	return ok
}

// setValue atomically replaces the value slot with one holding cell under
// generation, for strong and weak values alike. Callers pass a fresh
// generation from the segment's counter, so a still-pending reclamation
// notification for the cell being replaced is recognized as stale and
// ignored by the drain path.
func (e *Entry[K, V]) setValue(cell refcell.Cell[V], generation uint64) {
	e.valueRef.Store(&valueSlot[V]{cell: cell, generation: generation})
}

// clearValue invalidates the value cell without removing the entry. Called
// by removeByGenerationLocked right before it unlinks an entry whose weak
// value was reclaimed: the entry is about to be dropped by the chain
// rebuild regardless, but clearValue gives any lock-free reader already
// mid-traversal of the soon-to-be-replaced chain an immediate, cheap
// "absent" answer instead of one more round-trip through the (already
// collected) weak pointer.
func (e *Entry[K, V]) clearValue() {
	e.valueRef.Store(nil)
}

// noteMatchesGeneration reports whether a drain notification carrying
// generation g still refers to this entry's current value slot.
func (e *Entry[K, V]) noteMatchesGeneration(g uint64) bool {
	return e.generation() == g
}

// newEntry constructs a fresh, fully-initialized entry from reference cells
// the caller has already built (with the segment's key and value factories)
// and the generations those cells were armed under.
func newEntry[K comparable, V any](
	hash uint64,
	next *Entry[K, V],
	keyRef refcell.Cell[K],
	keyGeneration uint64,
	valueRef refcell.Cell[V],
	valueGeneration uint64,
) *Entry[K, V] {
	e := &Entry[K, V]{hash: hash, next: next, keyRef: keyRef, keyGeneration: keyGeneration}
	e.setValue(valueRef, valueGeneration)
	return e
}

// cloneWithNext creates a fresh entry sharing this entry's hash, key cell
// and current value cell, but a new next pointer. It returns ok=false when
// the source entry is already collected (key or value gone), signaling to
// the caller (chain rebuild, expansion) that this node should be dropped
// rather than cloned forward.
func (e *Entry[K, V]) cloneWithNext(next *Entry[K, V]) (clone *Entry[K, V], ok bool) {
	if _, kok := e.Key(); !kok {
		return nil, false
	}
	slot := e.valueRef.Load()
	if slot == nil {
		return nil, false
	}
	if _, vok := slot.cell.Get(); !vok {
		return nil, false
	}
	clone = &Entry[K, V]{hash: e.hash, next: next, keyRef: e.keyRef, keyGeneration: e.keyGeneration}
	clone.valueRef.Store(slot)
	return clone, true
}

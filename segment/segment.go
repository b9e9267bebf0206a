package segment

import (
	"sync"
	"sync/atomic"

	"github.com/gostriped/stripedmap/hashmix"
	"github.com/gostriped/stripedmap/refcell"
)

// DrainMax bounds how many pending reclamation notifications a single drain
// attempt consumes from one queue (spec §4.6).
const DrainMax = 16

// DrainThreshold amortizes post-read drain attempts to one in every 64
// reads (spec §4.6: "(read_count & DRAIN_THRESHOLD) == 0").
const DrainThreshold = 63

// table is a segment's bucket array: each slot is an atomically swappable
// pointer to the head of a bucket's chain.
type table[K comparable, V any] []atomic.Pointer[Entry[K, V]]

// Stats is a point-in-time readout of a segment's bookkeeping counters,
// used by the optional Prometheus collector in the root package.
type Stats struct {
	Count      int32
	ModCount   int32
	Capacity   int
	Resizes    int64
	Drains     int64
	Reclaimed  int64
}

// Segment is one independently-lockable shard of a striped map: a hash
// table with open-chaining buckets. Reads of a populated bucket chain are
// lock-free; all structural mutation happens under mu.
type Segment[K comparable, V any] struct {
	mu sync.Mutex

	buckets   atomic.Pointer[table[K, V]]
	count     atomic.Int32
	modCount  atomic.Int32
	threshold int // guarded by mu

	loadFactor float64

	readCount  atomic.Uint32
	generation atomic.Uint64

	equivalence hashmix.Equivalence[K]

	keyStrength   refcell.Strength
	valueStrength refcell.Strength
	keyFactory    refcell.Factory[K]
	valueFactory  refcell.Factory[V]

	keyQueue   *refcell.Queue
	valueQueue *refcell.Queue

	resizes   atomic.Int64
	drains    atomic.Int64
	reclaimed atomic.Int64
}

// New constructs a segment with the given initial capacity (must already be
// a power of two) and load factor.
func New[K comparable, V any](
	capacity int,
	loadFactor float64,
	equivalence hashmix.Equivalence[K],
	keyStrength, valueStrength refcell.Strength,
	keyFactory refcell.Factory[K],
	valueFactory refcell.Factory[V],
) *Segment[K, V] {
	s := &Segment[K, V]{
		loadFactor:    loadFactor,
		equivalence:   equivalence,
		keyStrength:   keyStrength,
		valueStrength: valueStrength,
		keyFactory:    keyFactory,
		valueFactory:  valueFactory,
	}
	if keyStrength == refcell.Weak {
		s.keyQueue = refcell.NewQueue(DrainMax * 4)
	}
	if valueStrength == refcell.Weak {
		s.valueQueue = refcell.NewQueue(DrainMax * 4)
	}
	t := make(table[K, V], capacity)
	s.buckets.Store(&t)
	s.threshold = int(float64(capacity) * loadFactor)
	return s
}

func (s *Segment[K, V]) table() *table[K, V] {
	return s.buckets.Load()
}

func (s *Segment[K, V]) bucketIndex(t *table[K, V], hash uint64) int {
	return hashmix.BucketFor(hash, len(*t))
}

// Count returns the segment's current live-entry count (volatile read).
func (s *Segment[K, V]) Count() int32 { return s.count.Load() }

// ModCount returns the segment's current structural-mutation counter.
func (s *Segment[K, V]) ModCount() int32 { return s.modCount.Load() }

// Stats snapshots the segment's bookkeeping counters.
func (s *Segment[K, V]) Stats() Stats {
	return Stats{
		Count:     s.count.Load(),
		ModCount:  s.modCount.Load(),
		Capacity:  len(*s.table()),
		Resizes:   s.resizes.Load(),
		Drains:    s.drains.Load(),
		Reclaimed: s.reclaimed.Load(),
	}
}

// ---- reads (lock-free) ----

// Get returns the value mapped to key under hash, if live.
func (s *Segment[K, V]) Get(key K, hash uint64) (V, bool) {
	var zero V
	if s.count.Load() == 0 {
		s.postReadCleanup()
		return zero, false
	}
	t := s.table()
	idx := s.bucketIndex(t, hash)
	e := (*t)[idx].Load()
	sawCollected := false
	for e != nil {
		if e.hash == hash {
			if k, ok := e.Key(); ok && s.equivalence.Equal(k, key) {
				if v, ok := e.Value(); ok {
					s.postReadCleanup()
					return v, true
				}
				sawCollected = true
				break
			}
		}
		e = e.next
	}
	if sawCollected {
		// A live key with a collected value (or vice versa): treat as
		// absent and make an immediate, non-blocking attempt to drain,
		// rather than waiting for the amortized schedule.
		s.tryDrain()
	} else {
		s.postReadCleanup()
	}
	return zero, false
}

// ContainsKey reports whether key is currently mapped, live.
func (s *Segment[K, V]) ContainsKey(key K, hash uint64) bool {
	_, ok := s.Get(key, hash)
	return ok
}

// ---- amortized cleanup ----

// postReadCleanup increments the read counter and, once every
// DrainThreshold+1 reads, makes a non-blocking drain attempt.
func (s *Segment[K, V]) postReadCleanup() {
	rc := s.readCount.Add(1)
	if rc&DrainThreshold == 0 {
		s.tryDrain()
	}
}

// preWriteCleanup drains synchronously; callers already hold mu.
func (s *Segment[K, V]) preWriteCleanup() {
	s.drainLocked()
}

// tryDrain attempts to acquire the lock non-blockingly and drain both
// queues; if the lock is contended, it defers (spec §4.6 "try_drain").
func (s *Segment[K, V]) tryDrain() {
	if s.keyQueue == nil && s.valueQueue == nil {
		return
	}
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()
	s.drainLocked()
}

// drainLocked polls both reclamation queues and removes any entries they
// name. Must be called with mu held.
func (s *Segment[K, V]) drainLocked() {
	if s.keyQueue != nil {
		n := s.keyQueue.Poll(DrainMax, func(token uint64) {
			s.removeByGenerationLocked(token, forKey)
		})
		if n > 0 {
			s.drains.Add(1)
		}
	}
	if s.valueQueue != nil {
		n := s.valueQueue.Poll(DrainMax, func(token uint64) {
			s.removeByGenerationLocked(token, forValue)
		})
		if n > 0 {
			s.drains.Add(1)
		}
	}
}

type cellKind int

const (
	forKey cellKind = iota
	forValue
)

// removeByGenerationLocked scans every bucket's chain for the entry whose
// weak cell was armed under generation token and removes it via the
// chain-rebuild protocol, unless the notification is stale (the cell has
// since been replaced, or the entry was already pruned). Must be called
// with mu held.
func (s *Segment[K, V]) removeByGenerationLocked(token uint64, kind cellKind) {
	t := s.table()
	for idx := range *t {
		first := (*t)[idx].Load()
		for e := first; e != nil; e = e.next {
			match := false
			switch kind {
			case forKey:
				match = e.keyNoteMatches(token) && !keyLive(e)
			case forValue:
				match = e.noteMatchesGeneration(token) && !valueLive(e)
			}
			if match {
				if kind == forValue {
					// Mark the slot gone before unlinking the node: a
					// lock-free reader that already loaded e from the old
					// bucket head (before rebuildWithoutLocked's atomic
					// swap below becomes visible) then sees absence via
					// the cheap nil-slot path in Entry.Value instead of
					// re-querying the weak pointer we already know is
					// collected.
					e.clearValue()
				}
				s.rebuildWithoutLocked(t, idx, first, e)
				s.reclaimed.Add(1)
				return
			}
		}
	}
}

func keyLive[K comparable, V any](e *Entry[K, V]) bool {
	_, ok := e.Key()
	return ok
}

func valueLive[K comparable, V any](e *Entry[K, V]) bool {
	_, ok := e.Value()
	return ok
}

// ---- writes (under the lock) ----

// Put inserts or updates key's mapping. If onlyIfAbsent is true and a live
// mapping already exists, the existing value is returned unchanged.
// Returns the previous live value (if any) and whether one existed; a
// newly added key, or a key whose collected value was replaced, reports false.
func (s *Segment[K, V]) Put(key K, hash uint64, value V, onlyIfAbsent bool) (previous V, hadPrevious bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preWriteCleanup()

	if int(s.count.Load())+1 > s.threshold {
		s.expandLocked()
	}

	t := s.table()
	idx := s.bucketIndex(t, hash)
	first := (*t)[idx].Load()

	for e := first; e != nil; e = e.next {
		if e.hash != hash {
			continue
		}
		k, kok := e.Key()
		if !kok || !s.equivalence.Equal(k, key) {
			continue
		}
		v, vok := e.Value()
		if vok {
			previous, hadPrevious = v, true
			if !onlyIfAbsent {
				s.installValueLocked(e, value)
			}
			return previous, hadPrevious
		}
		// Key live, value collected: resurrect in place without
		// incrementing count (the entry already contributed to it).
		s.installValueLocked(e, value)
		var zero V
		return zero, false
	}

	keyGen := s.generation.Add(1)
	keyCell := s.keyFactory(key, s.keyQueue, keyGen)
	valueGen := s.generation.Add(1)
	valueCell := s.valueFactory(value, s.valueQueue, valueGen)
	entry := newEntry[K, V](hash, first, keyCell, keyGen, valueCell, valueGen)
	(*t)[idx].Store(entry)
	s.modCount.Add(1)
	s.count.Add(1)

	var zero V
	return zero, false
}

func (s *Segment[K, V]) installValueLocked(e *Entry[K, V], value V) {
	gen := s.generation.Add(1)
	cell := s.valueFactory(value, s.valueQueue, gen)
	e.setValue(cell, gen)
}

// Replace implements the 2-arg replace(key, newValue): replace the value
// only if a live mapping currently exists, returning the previous value.
func (s *Segment[K, V]) Replace(key K, hash uint64, newValue V) (previous V, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preWriteCleanup()

	t := s.table()
	idx := s.bucketIndex(t, hash)
	for e := (*t)[idx].Load(); e != nil; e = e.next {
		if e.hash != hash {
			continue
		}
		k, kok := e.Key()
		if !kok || !s.equivalence.Equal(k, key) {
			continue
		}
		v, vok := e.Value()
		if !vok {
			var zero V
			return zero, false
		}
		s.installValueLocked(e, newValue)
		return v, true
	}
	var zero V
	return zero, false
}

// ReplaceIfEqual implements the 3-arg replace(key, old, new): compare-then-
// replace, requiring the current live value to equal old under valueEqual.
func (s *Segment[K, V]) ReplaceIfEqual(key K, hash uint64, old, newValue V, valueEqual func(a, b V) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preWriteCleanup()

	t := s.table()
	idx := s.bucketIndex(t, hash)
	for e := (*t)[idx].Load(); e != nil; e = e.next {
		if e.hash != hash {
			continue
		}
		k, kok := e.Key()
		if !kok || !s.equivalence.Equal(k, key) {
			continue
		}
		v, vok := e.Value()
		if !vok || !valueEqual(v, old) {
			return false
		}
		s.installValueLocked(e, newValue)
		return true
	}
	return false
}

// Remove removes key's mapping unconditionally, returning the previous
// live value if any. A collected entry (key or value already gone) is
// never returned, per the spec's chosen resolution of the "partially
// collected remove" open question: always report absent.
func (s *Segment[K, V]) Remove(key K, hash uint64) (previous V, removed bool) {
	return s.removeIf(key, hash, nil, nil)
}

// RemoveIfEqual removes key's mapping only if its current live value
// equals value under valueEqual.
func (s *Segment[K, V]) RemoveIfEqual(key K, hash uint64, value V, valueEqual func(a, b V) bool) bool {
	_, removed := s.removeIf(key, hash, &value, valueEqual)
	return removed
}

func (s *Segment[K, V]) removeIf(key K, hash uint64, value *V, valueEqual func(a, b V) bool) (previous V, removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preWriteCleanup()

	t := s.table()
	idx := s.bucketIndex(t, hash)
	first := (*t)[idx].Load()
	for e := first; e != nil; e = e.next {
		if e.hash != hash {
			continue
		}
		k, kok := e.Key()
		if !kok || !s.equivalence.Equal(k, key) {
			continue
		}
		v, vok := e.Value()
		if !vok {
			var zero V
			return zero, false
		}
		if value != nil && !valueEqual(v, *value) {
			var zero V
			return zero, false
		}
		s.rebuildWithoutLocked(t, idx, first, e)
		return v, true
	}
	var zero V
	return zero, false
}

// rebuildWithoutLocked removes the node matching at bucket idx from the
// chain rooted at first, by cloning every node strictly before match and
// reusing match.next (and everything after it) unchanged — the chain
// rebuild protocol of spec §4.5. Any intermediate node found already
// collected during cloning is dropped and its count contribution
// subtracted. Must be called with mu held.
func (s *Segment[K, V]) rebuildWithoutLocked(t *table[K, V], idx int, first, match *Entry[K, V]) {
	newTail := match.next
	dropped := 0

	// Collect the prefix (first..match, exclusive) in original order so we
	// can clone it back-to-front onto newTail.
	var prefix []*Entry[K, V]
	for p := first; p != match; p = p.next {
		prefix = append(prefix, p)
	}
	for i := len(prefix) - 1; i >= 0; i-- {
		clone, ok := prefix[i].cloneWithNext(newTail)
		if !ok {
			dropped++
			continue
		}
		newTail = clone
	}

	(*t)[idx].Store(newTail)
	s.modCount.Add(1)
	s.count.Add(-1 - int32(dropped))
	if dropped > 0 {
		s.reclaimed.Add(int64(dropped))
	}
}

// Clear empties the segment.
func (s *Segment[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count.Load() == 0 {
		return
	}
	t := s.table()
	fresh := make(table[K, V], len(*t))
	s.buckets.Store(&fresh)
	s.modCount.Add(1)
	s.count.Store(0)
}

// ---- expansion ----

// expandLocked doubles the bucket array, relinking each old chain into the
// new array. For each old bucket, the longest tail suffix whose nodes all
// map to the same new index is reused verbatim (no allocation); only the
// preceding nodes are cloned, and a clone whose source is collected is
// skipped, decrementing count. Must be called with mu held.
func (s *Segment[K, V]) expandLocked() {
	old := s.table()
	oldCap := len(*old)
	if oldCap >= hashmix.MaxCapacity {
		return
	}
	newCap := oldCap * 2
	newTable := make(table[K, V], newCap)
	dropped := 0

	for i := 0; i < oldCap; i++ {
		e := (*old)[i].Load()
		if e == nil {
			continue
		}

		if e.next == nil {
			idx := hashmix.BucketFor(e.hash, newCap)
			newTable[idx].Store(e)
			continue
		}

		// Find the longest trailing run that all shares one new index.
		lastRun := e
		lastIdx := hashmix.BucketFor(e.hash, newCap)
		for p := e.next; p != nil; p = p.next {
			idx := hashmix.BucketFor(p.hash, newCap)
			if idx != lastIdx {
				lastIdx = idx
				lastRun = p
			}
		}
		newTable[lastIdx].Store(lastRun)

		// Clone everything before lastRun, prepending onto the
		// appropriate new bucket; built back-to-front so next pointers
		// stay correct without a second pass.
		var prefix []*Entry[K, V]
		for p := e; p != lastRun; p = p.next {
			prefix = append(prefix, p)
		}
		for j := len(prefix) - 1; j >= 0; j-- {
			p := prefix[j]
			idx := hashmix.BucketFor(p.hash, newCap)
			clone, ok := p.cloneWithNext(newTable[idx].Load())
			if !ok {
				dropped++
				continue
			}
			newTable[idx].Store(clone)
		}
	}

	s.buckets.Store(&newTable)
	s.threshold = int(float64(newCap) * s.loadFactor)
	s.resizes.Add(1)
	if dropped > 0 {
		s.count.Add(-int32(dropped))
		s.reclaimed.Add(int64(dropped))
	}
}

// BucketHead returns the current head of bucket idx's chain, a lock-free
// snapshot read. Used by the root package's pull-based Iterator, which
// needs to resume mid-table across calls rather than running a single
// callback over the whole segment.
func (s *Segment[K, V]) BucketHead(idx int) *Entry[K, V] {
	t := s.table()
	if idx < 0 || idx >= len(*t) {
		return nil
	}
	return (*t)[idx].Load()
}

// ForEachBucket exposes read-only, descending-index iteration over the
// current bucket array to the root package's weakly-consistent iterator.
// The callback receives each bucket's index and its chain head, read from
// one snapshot of the table pointer; the table itself is never mutated by
// the callback.
func (s *Segment[K, V]) ForEachBucket(f func(idx int, head *Entry[K, V])) {
	t := s.table()
	for idx := len(*t) - 1; idx >= 0; idx-- {
		f(idx, (*t)[idx].Load())
	}
	s.postReadCleanup()
}

// KeyStrength and ValueStrength report the segment's configured strengths.
func (s *Segment[K, V]) KeyStrength() refcell.Strength   { return s.keyStrength }
func (s *Segment[K, V]) ValueStrength() refcell.Strength { return s.valueStrength }

// Package stripedmap implements a segmented, lock-striped concurrent
// associative map: an independent set of per-segment hash tables, each with
// its own exclusive lock, non-blocking reads, and a cooperative reclamation
// engine that prunes entries whose weak key or value has been collected by
// the host garbage collector.
package stripedmap

import (
	"reflect"

	"github.com/gostriped/stripedmap/hashmix"
	"github.com/gostriped/stripedmap/refcell"
	"github.com/gostriped/stripedmap/segment"
)

// retryBound is how many times ContainsValue/Size re-snapshot the
// segments' mod counts before giving up and returning the last observed
// answer, per spec §7's ContentionDetected policy.
const retryBound = 3

// Entry is a point-in-time snapshot of one live key/value pair, returned by
// GetEntry and the entry iterator. It is a value, not a live handle: per
// spec §9 ("a yielded entry is a value snapshot"), mutating a mapping found
// this way must go back through the Map's Put/Replace/Remove methods.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is a segmented concurrent map. The zero value is not usable; build
// one with New.
type Map[K comparable, V any] struct {
	segments     []*segment.Segment[K, V]
	segmentShift uint
	segmentMask  uint32

	equivalence hashmix.Equivalence[K]
	valueEqual  func(a, b V) bool

	dummyValue bool
	dummy      V

	metrics *Metrics
	logger  Logger
}

// New builds a Map from cfg, applying defaults and validating boundary
// conditions (spec §6.1). A validation failure returns ErrInvalidArgument
// and a nil Map.
func New[K comparable, V any](cfg Config[K, V]) (*Map[K, V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	segCount := hashmix.ClampSegments(hashmix.RoundUpToPowerOfTwo(cfg.ConcurrencyLevel))
	shift, mask := hashmix.ShiftAndMask(segCount)

	segCapacity := hashmix.ClampCapacity(hashmix.RoundUpToPowerOfTwo(cfg.InitialCapacity))
	// Each segment's share of the requested total capacity, never less
	// than 1 bucket.
	perSegment := segCapacity / segCount
	if perSegment < 1 {
		perSegment = 1
	}

	valueEqual := cfg.ValueEqual
	if valueEqual == nil {
		valueEqual = defaultValueEqual[V]
	}

	m := &Map[K, V]{
		segments:     make([]*segment.Segment[K, V], segCount),
		segmentShift: shift,
		segmentMask:  mask,
		equivalence:  *cfg.KeyEquivalence,
		valueEqual:   valueEqual,
		dummyValue:   cfg.DummyValue,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	for i := range m.segments {
		m.segments[i] = segment.New[K, V](
			perSegment,
			cfg.LoadFactor,
			m.equivalence,
			cfg.KeyStrength,
			cfg.ValueStrength,
			cfg.KeyCellFactory,
			cfg.ValueCellFactory,
		)
	}
	if m.metrics != nil {
		m.metrics.attach(m.snapshotSegments)
	}
	m.logDebugf("stripedmap: built %d segments of capacity %d (key=%s, value=%s)",
		segCount, perSegment, cfg.KeyStrength, cfg.ValueStrength)
	return m, nil
}

// defaultValueEqual is used when Config.ValueEqual is nil; it requires V
// to be comparable at the call site, matching the == operator Go's own
// stdlib map uses for its equivalent comparisons.
func defaultValueEqual[V any](a, b V) bool {
	return any(a) == any(b)
}

func (m *Map[K, V]) snapshotSegments() []segmentSnapshot {
	out := make([]segmentSnapshot, len(m.segments))
	for i, s := range m.segments {
		st := s.Stats()
		out[i] = segmentSnapshot{
			index:     i,
			count:     st.Count,
			capacity:  st.Capacity,
			resizes:   st.Resizes,
			drains:    st.Drains,
			reclaimed: st.Reclaimed,
		}
	}
	return out
}

// locate returns the segment responsible for key along with key's mixed
// hash, which also serves as the bucket-selection hash inside that segment
// (spec §4.1: segment and bucket selection draw from disjoint bit ranges of
// one mixed hash).
func (m *Map[K, V]) locate(key K) (*segment.Segment[K, V], uint64) {
	spread := hashmix.Spread(m.equivalence.Hash(key))
	idx := hashmix.SegmentFor(spread, m.segmentShift, m.segmentMask)
	return m.segments[idx], spread
}

func (m *Map[K, V]) logDebugf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Debugf(format, args...)
	}
}

// Get returns the value mapped to key, if any live mapping exists.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s, hash := m.locate(key)
	return s.Get(key, hash)
}

// GetEntry returns a snapshot of key's live mapping, if any.
func (m *Map[K, V]) GetEntry(key K) (Entry[K, V], bool) {
	v, ok := m.Get(key)
	if !ok {
		var zero Entry[K, V]
		return zero, false
	}
	return Entry[K, V]{Key: key, Value: v}, true
}

// Put inserts or replaces key's mapping, returning the previous value if
// one existed. A nil key or value fails with ErrInvalidArgument before any
// state changes (spec §4.9/§7); for a weak-strength map this boundary check
// is what keeps a nil from ever reaching the reference-cell factory, where
// it would otherwise panic.
func (m *Map[K, V]) Put(key K, value V) (previous V, replaced bool, err error) {
	if err := m.checkPutArgs(key, value); err != nil {
		var zero V
		return zero, false, err
	}
	s, hash := m.locate(key)
	previous, replaced = s.Put(key, hash, m.storedValue(value), false)
	return previous, replaced, nil
}

// PutIfAbsent inserts key's mapping only if absent, returning the current
// (possibly pre-existing) value and whether the map already held one. A nil
// key or value fails with ErrInvalidArgument before any state changes.
func (m *Map[K, V]) PutIfAbsent(key K, value V) (current V, existed bool, err error) {
	if err := m.checkPutArgs(key, value); err != nil {
		var zero V
		return zero, false, err
	}
	s, hash := m.locate(key)
	prev, had := s.Put(key, hash, m.storedValue(value), true)
	if had {
		return prev, true, nil
	}
	return value, false, nil
}

// checkPutArgs validates a key/value pair against spec §4.9's boundary
// rule: a nil key or value fails with ErrInvalidArgument. In dummy-value
// mode the caller's value is never actually stored (storedValue substitutes
// the shared zero value), so it is exempt from the nil check.
func (m *Map[K, V]) checkPutArgs(key K, value V) error {
	if isNilArg(key) {
		return ErrInvalidArgument
	}
	if !m.dummyValue && isNilArg(value) {
		return ErrInvalidArgument
	}
	return nil
}

// isNilArg reports whether v is nil. Go generics give no reflection-free
// way to ask "is this value of an arbitrary type parameter nil" — a nil
// pointer of concrete type T boxed into an interface{} is not itself equal
// to the untyped nil literal — so this falls back to reflect.Value.IsNil
// for the kinds that can be nil (pointer, interface, map, slice, channel,
// function); every other kind (string, numeric, struct, array, ...) has no
// concept of null and always reports false, since its zero value is a
// legitimate, storable value rather than an absence.
func isNilArg(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

// storedValue returns the dummy zero value in intern-set mode, or value
// unchanged otherwise.
func (m *Map[K, V]) storedValue(value V) V {
	if m.dummyValue {
		return m.dummy
	}
	return value
}

// Replace implements the 2-arg replace: set key's value only if a live
// mapping currently exists, returning the previous value. A nil key or
// value fails with ErrInvalidArgument before any state changes.
func (m *Map[K, V]) Replace(key K, newValue V) (previous V, replaced bool, err error) {
	if err := m.checkPutArgs(key, newValue); err != nil {
		var zero V
		return zero, false, err
	}
	s, hash := m.locate(key)
	previous, replaced = s.Replace(key, hash, m.storedValue(newValue))
	return previous, replaced, nil
}

// ReplaceIfEqual implements the 3-arg replace: compare-then-replace,
// succeeding only if the live value currently equals old. A nil key or
// newValue fails with ErrInvalidArgument before any state changes.
func (m *Map[K, V]) ReplaceIfEqual(key K, old, newValue V) (bool, error) {
	if err := m.checkPutArgs(key, newValue); err != nil {
		return false, err
	}
	s, hash := m.locate(key)
	return s.ReplaceIfEqual(key, hash, old, m.storedValue(newValue), m.valueEqual), nil
}

// Remove removes key's mapping unconditionally, returning the previous
// value if one was live.
func (m *Map[K, V]) Remove(key K) (previous V, removed bool) {
	s, hash := m.locate(key)
	return s.Remove(key, hash)
}

// RemoveIfEqual removes key's mapping only if its live value equals value.
func (m *Map[K, V]) RemoveIfEqual(key K, value V) bool {
	s, hash := m.locate(key)
	return s.RemoveIfEqual(key, hash, value, m.valueEqual)
}

// Clear empties every segment.
func (m *Map[K, V]) Clear() {
	m.logDebugf("stripedmap: clearing %d segments", len(m.segments))
	for _, s := range m.segments {
		s.Clear()
	}
}

// ContainsKey reports whether key currently has a live mapping.
func (m *Map[K, V]) ContainsKey(key K) bool {
	s, hash := m.locate(key)
	return s.ContainsKey(key, hash)
}

// ContainsValue reports whether any live mapping currently holds value. It
// retries up to retryBound times if a segment's mod count changes mid-scan
// (spec §7's ContentionDetected), returning the last observed answer on
// exhaustion rather than blocking.
func (m *Map[K, V]) ContainsValue(value V) bool {
	for attempt := 0; attempt < retryBound; attempt++ {
		found, stable := m.scanForValue(value)
		if stable {
			return found
		}
	}
	found, _ := m.scanForValue(value)
	return found
}

func (m *Map[K, V]) scanForValue(value V) (found bool, stable bool) {
	stable = true
	for _, s := range m.segments {
		before := s.ModCount()
		hit := false
		s.ForEachBucket(func(_ int, head *segment.Entry[K, V]) {
			for e := head; e != nil; e = e.Next() {
				if v, ok := e.Value(); ok && m.valueEqual(v, value) {
					hit = true
					return
				}
			}
		})
		after := s.ModCount()
		if before != after {
			stable = false
		}
		if hit {
			found = true
		}
	}
	return found, stable
}

// Size returns the total number of live entries across all segments,
// retrying the same way ContainsValue does if segments mutate mid-count.
func (m *Map[K, V]) Size() int {
	for attempt := 0; attempt < retryBound; attempt++ {
		total, stable := m.countAll()
		if stable {
			return total
		}
	}
	total, _ := m.countAll()
	return total
}

func (m *Map[K, V]) countAll() (total int, stable bool) {
	stable = true
	for _, s := range m.segments {
		before := s.ModCount()
		total += int(s.Count())
		after := s.ModCount()
		if before != after {
			stable = false
		}
	}
	return total, stable
}

// IsEmpty reports whether the map currently holds no live entries. It is a
// two-phase snapshot, not a single scan: any segment observed with a
// non-zero count settles the answer immediately, but a count of zero
// everywhere can be transient (an entry moving between segments mid-scan),
// so a first all-zero result is re-verified by comparing the sum of every
// segment's mod_count across a second scan. The two agree only if no
// segment mutated structurally between them.
func (m *Map[K, V]) IsEmpty() bool {
	if m.anySegmentNonEmpty() {
		return false
	}

	before := m.modCountSum()
	stillZero := !m.anySegmentNonEmpty()
	after := m.modCountSum()
	return stillZero && before == after
}

func (m *Map[K, V]) anySegmentNonEmpty() bool {
	for _, s := range m.segments {
		if s.Count() > 0 {
			return true
		}
	}
	return false
}

func (m *Map[K, V]) modCountSum() int64 {
	var sum int64
	for _, s := range m.segments {
		sum += int64(s.ModCount())
	}
	return sum
}

// Keys returns a snapshot slice of every currently-live key, in the
// weakly-consistent order the underlying iterator produces (spec §4.8).
func (m *Map[K, V]) Keys() []K {
	var out []K
	m.Entries(func(e Entry[K, V]) bool {
		out = append(out, e.Key)
		return true
	})
	return out
}

// Values returns a snapshot slice of every currently-live value.
func (m *Map[K, V]) Values() []V {
	var out []V
	m.Entries(func(e Entry[K, V]) bool {
		out = append(out, e.Value)
		return true
	})
	return out
}

// Entries calls f once for every currently-live entry, in descending
// per-segment bucket order across ascending segment index, stopping early
// if f returns false. The iteration is weakly consistent: it reflects some,
// but not necessarily all, mutations that race with it (spec §4.8).
func (m *Map[K, V]) Entries(f func(Entry[K, V]) bool) {
	stopped := false
	for _, s := range m.segments {
		if stopped {
			return
		}
		s.ForEachBucket(func(_ int, head *segment.Entry[K, V]) {
			if stopped {
				return
			}
			for e := head; e != nil; e = e.Next() {
				k, kok := e.Key()
				if !kok {
					continue
				}
				v, vok := e.Value()
				if !vok {
					continue
				}
				if !f(Entry[K, V]{Key: k, Value: v}) {
					stopped = true
					return
				}
			}
		})
	}
}

// KeyStrength and ValueStrength report the map's configured strengths.
func (m *Map[K, V]) KeyStrength() refcell.Strength {
	return m.segments[0].KeyStrength()
}

func (m *Map[K, V]) ValueStrength() refcell.Strength {
	return m.segments[0].ValueStrength()
}

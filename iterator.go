package stripedmap

import "github.com/gostriped/stripedmap/segment"

// Iterator is a stateful, weakly-consistent cursor over a Map's live
// entries, for callers that want pull-based iteration instead of the
// callback-based Entries. It walks segments in ascending index order and,
// within each segment, buckets in descending index order (spec §4.8); a
// yielded Entry is a snapshot, and Remove routes back through the owning
// Map rather than mutating the chain directly, per the iterator-validity
// design note in spec §9.
type Iterator[K comparable, V any] struct {
	m *Map[K, V]

	segIdx    int
	bucketIdx int
	cur       *segment.Entry[K, V]

	last   Entry[K, V]
	lastOK bool
	done   bool
}

// KeyIterator, ValueIterator and EntryIterator all build on the same
// underlying cursor; the distinction is source-level ergonomics, matching
// the three named operations of spec §6.2.
func (m *Map[K, V]) KeyIterator() *Iterator[K, V]   { return newIterator(m) }
func (m *Map[K, V]) ValueIterator() *Iterator[K, V] { return newIterator(m) }
func (m *Map[K, V]) EntryIterator() *Iterator[K, V] { return newIterator(m) }

func newIterator[K comparable, V any](m *Map[K, V]) *Iterator[K, V] {
	it := &Iterator[K, V]{m: m}
	if len(m.segments) == 0 {
		it.done = true
		return it
	}
	it.loadBucket()
	return it
}

// loadBucket positions cur at the next non-empty bucket head, advancing
// across segments as needed; sets done when no more buckets remain.
func (it *Iterator[K, V]) loadBucket() {
	for it.segIdx < len(it.m.segments) {
		s := it.m.segments[it.segIdx]
		capacity := s.Stats().Capacity
		for it.bucketIdx < capacity {
			idx := capacity - 1 - it.bucketIdx
			head := s.BucketHead(idx)
			it.bucketIdx++
			if head != nil {
				it.cur = head
				return
			}
		}
		it.segIdx++
		it.bucketIdx = 0
	}
	it.cur = nil
	it.done = true
}

// Next advances the iterator and reports whether a live entry was found.
// Entries whose key or value has since been collected are skipped
// transparently.
func (it *Iterator[K, V]) Next() bool {
	for {
		if it.done {
			return false
		}
		for it.cur == nil {
			if it.segIdx >= len(it.m.segments) {
				it.done = true
				return false
			}
			it.loadBucket()
			if it.done {
				return false
			}
		}
		e := it.cur
		it.cur = e.Next()
		if it.cur == nil {
			it.loadBucket()
		}

		k, kok := e.Key()
		if !kok {
			continue
		}
		v, vok := e.Value()
		if !vok {
			continue
		}
		it.last = Entry[K, V]{Key: k, Value: v}
		it.lastOK = true
		return true
	}
}

// Entry returns the entry most recently yielded by Next.
func (it *Iterator[K, V]) Entry() Entry[K, V] { return it.last }

// Key returns the key most recently yielded by Next.
func (it *Iterator[K, V]) Key() K { return it.last.Key }

// Value returns the value most recently yielded by Next.
func (it *Iterator[K, V]) Value() V { return it.last.Value }

// Remove removes the entry most recently yielded by Next, via the owning
// Map's Remove — never by mutating the chain the iterator is walking.
func (it *Iterator[K, V]) Remove() (removed bool) {
	if !it.lastOK {
		return false
	}
	_, removed = it.m.Remove(it.last.Key)
	it.lastOK = false
	return removed
}

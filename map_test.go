package stripedmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/gostriped/stripedmap/refcell"
	"github.com/gostriped/stripedmap/test"
)

func newTestMap(t *testing.T, cfg Config[string, int]) *Map[string, int] {
	t.Helper()
	m, err := New[string, int](cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

// S1 — basic round-trip.
func TestBasicRoundTrip(t *testing.T) {
	m := newTestMap(t, Config[string, int]{InitialCapacity: 16})
	m.Put("a", 1)
	m.Put("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf(`Get("a") = (%v, %v), want (1, true)`, v, ok)
	}
	if v, ok := m.Get("b"); !ok || v != 2 {
		t.Fatalf(`Get("b") = (%v, %v), want (2, true)`, v, ok)
	}
	if m.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", m.Size())
	}

	var keys []string
	m.Entries(func(e Entry[string, int]) bool {
		keys = append(keys, e.Key)
		return true
	})
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Entries() keys = %v, want [a b]", keys)
	}
}

// S2 — replace semantics.
func TestReplaceSemantics(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	m.Put("k", 10)

	if ok, err := m.ReplaceIfEqual("k", 10, 20); err != nil || !ok {
		t.Fatalf("ReplaceIfEqual(k, 10, 20) = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := m.ReplaceIfEqual("k", 10, 30); err != nil || ok {
		t.Fatalf("ReplaceIfEqual(k, 10, 30) = (%v, %v), want (false, nil); current value is 20", ok, err)
	}
	if v, _ := m.Get("k"); v != 20 {
		t.Fatalf(`Get("k") = %v, want 20`, v)
	}
}

// S3 — resize correctness.
func TestResizeCorrectness(t *testing.T) {
	m := newTestMap(t, Config[string, int]{InitialCapacity: 4, ConcurrencyLevel: 1})
	const n = 100
	for i := 0; i < n; i++ {
		m.Put(fmt.Sprintf("key-%03d", i), i)
	}
	if m.Size() != n {
		t.Fatalf("Size() = %d, want %d", m.Size(), n)
	}
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key-%03d", i)
		if v, ok := m.Get(key); !ok || v != i {
			t.Fatalf("Get(%q) = (%v, %v), want (%d, true)", key, v, ok, i)
		}
	}
	count := 0
	m.Entries(func(Entry[string, int]) bool { count++; return true })
	if count != n {
		t.Fatalf("Entries() visited %d, want %d", count, n)
	}
}

func TestPutIfAbsentIdempotence(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	cur, existed, err := m.PutIfAbsent("k", 1)
	if err != nil || existed || cur != 1 {
		t.Fatalf("first PutIfAbsent = (%v, %v, %v), want (1, false, nil)", cur, existed, err)
	}
	cur, existed, err = m.PutIfAbsent("k", 2)
	if err != nil || !existed || cur != 1 {
		t.Fatalf("second PutIfAbsent = (%v, %v, %v), want (1, true, nil)", cur, existed, err)
	}
}

func TestRemoveIdempotence(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	m.Put("k", 1)
	if _, removed := m.Remove("k"); !removed {
		t.Fatal("first Remove should succeed")
	}
	if _, removed := m.Remove("k"); removed {
		t.Fatal("second Remove should report false")
	}
}

func TestClearThenReuse(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	m.Put("a", 1)
	m.Put("b", 2)
	m.Clear()
	if m.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", m.Size())
	}
	m.Put("c", 3)
	if v, ok := m.Get("c"); !ok || v != 3 {
		t.Fatalf(`Get("c") after Clear+Put = (%v, %v), want (3, true)`, v, ok)
	}
}

func TestZeroInitialCapacityGrowsOnFirstPut(t *testing.T) {
	m := newTestMap(t, Config[string, int]{InitialCapacity: 0})
	m.Put("x", 1)
	if v, ok := m.Get("x"); !ok || v != 1 {
		t.Fatalf(`Get("x") = (%v, %v), want (1, true)`, v, ok)
	}
}

func TestConcurrencyLevelOneCollapsesToSingleSegment(t *testing.T) {
	m := newTestMap(t, Config[string, int]{ConcurrencyLevel: 1})
	if len(m.segments) != 1 {
		t.Fatalf("len(segments) = %d, want 1", len(m.segments))
	}
	m.Put("a", 1)
	m.Put("b", 2)
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf(`Get("a") = (%v, %v), want (1, true)`, v, ok)
	}
}

func TestContainsValue(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	m.Put("a", 1)
	m.Put("b", 2)
	if !m.ContainsValue(2) {
		t.Fatal("ContainsValue(2) = false, want true")
	}
	if m.ContainsValue(3) {
		t.Fatal("ContainsValue(3) = true, want false")
	}
}

func TestIsEmpty(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	if !m.IsEmpty() {
		t.Fatal("fresh map should be empty")
	}
	m.Put("a", 1)
	if m.IsEmpty() {
		t.Fatal("map with one entry should not be empty")
	}
	m.Remove("a")
	if !m.IsEmpty() {
		t.Fatal("map should be empty again after removing its only entry")
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	if _, err := New[string, int](Config[string, int]{InitialCapacity: -1}); err != ErrInvalidArgument {
		t.Fatalf("negative InitialCapacity: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := New[string, int](Config[string, int]{ConcurrencyLevel: -1}); err != ErrInvalidArgument {
		t.Fatalf("negative ConcurrencyLevel: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := New[string, int](Config[string, int]{DummyValue: true, ValueStrength: refcell.Weak}); err != ErrInvalidArgument {
		t.Fatalf("dummy+weak value: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := New[string, int](Config[string, int]{KeyStrength: refcell.Weak}); err != ErrInvalidArgument {
		t.Fatalf("weak key with no factory: err = %v, want ErrInvalidArgument", err)
	}
}

func TestNullKeyOrValueRejectedAtBoundary(t *testing.T) {
	m, err := New[*int, *int](Config[*int, *int]{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	one := 1

	if _, _, err := m.Put(nil, &one); err != ErrInvalidArgument {
		t.Fatalf("Put(nil key) err = %v, want ErrInvalidArgument", err)
	}
	if _, _, err := m.Put(&one, nil); err != ErrInvalidArgument {
		t.Fatalf("Put(nil value) err = %v, want ErrInvalidArgument", err)
	}
	if _, _, err := m.PutIfAbsent(nil, &one); err != ErrInvalidArgument {
		t.Fatalf("PutIfAbsent(nil key) err = %v, want ErrInvalidArgument", err)
	}
	if _, _, err := m.Replace(&one, nil); err != ErrInvalidArgument {
		t.Fatalf("Replace(nil value) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := m.ReplaceIfEqual(nil, &one, &one); err != ErrInvalidArgument {
		t.Fatalf("ReplaceIfEqual(nil key) err = %v, want ErrInvalidArgument", err)
	}
	if m.Size() != 0 {
		t.Fatalf("Size() = %d, want 0: a rejected call must never mutate state", m.Size())
	}
}

// S5 — concurrent put/remove invariant (scaled down from 8x10^4 to keep the
// suite fast; the invariant being tested does not depend on the scale).
func TestConcurrentPutRemoveInvariant(t *testing.T) {
	const workers = 8
	const opsPerWorker = 2000
	m := newTestMap(t, Config[string, int]{ConcurrencyLevel: 8})

	var wg sync.WaitGroup
	var netPuts, netRemoves int64
	var mu sync.Mutex
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			localPuts, localRemoves := 0, 0
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i%64)
				if i%3 == 0 {
					if _, removed := m.Remove(key); removed {
						localRemoves++
					}
				} else {
					if _, replaced, _ := m.Put(key, i); !replaced {
						localPuts++
					}
				}
			}
			mu.Lock()
			netPuts += int64(localPuts)
			netRemoves += int64(localRemoves)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	want := int(netPuts - netRemoves)
	if got := m.Size(); got != want {
		t.Fatalf("Size() = %d, want %d (netPuts=%d netRemoves=%d)", got, want, netPuts, netRemoves)
	}

	recount := 0
	m.Entries(func(Entry[string, int]) bool { recount++; return true })
	if recount != want {
		t.Fatalf("sequential recount = %d, want %d", recount, want)
	}
}

func TestKeysAndValuesSnapshots(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	m.Put("a", 1)
	m.Put("b", 2)

	keys := m.Keys()
	sort.Strings(keys)
	if d := test.Diff([]string{"a", "b"}, keys); d != "" {
		t.Fatalf("Keys() diff: %s", d)
	}

	values := m.Values()
	sort.Ints(values)
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Fatalf("Values() = %v, want [1 2]", values)
	}
}

func TestKeyStrengthAndValueStrengthReporting(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	if m.KeyStrength() != refcell.Strong {
		t.Fatalf("KeyStrength() = %v, want Strong", m.KeyStrength())
	}
	if m.ValueStrength() != refcell.Strong {
		t.Fatalf("ValueStrength() = %v, want Strong", m.ValueStrength())
	}
}

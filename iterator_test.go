package stripedmap

import "testing"

func TestEntryIteratorVisitsAllLiveEntries(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		m.Put(k, v)
	}

	got := map[string]int{}
	it := m.EntryIterator()
	for it.Next() {
		e := it.Entry()
		got[e.Key] = e.Value
	}
	if len(got) != len(want) {
		t.Fatalf("iterator visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("iterator entry %q = %v, want %v", k, got[k], v)
		}
	}
}

func TestIteratorRemoveRoutesThroughMap(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	m.Put("a", 1)
	m.Put("b", 2)

	it := m.KeyIterator()
	removed := 0
	for it.Next() {
		if it.Key() == "a" {
			if it.Remove() {
				removed++
			}
		}
	}
	if removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}
	if m.ContainsKey("a") {
		t.Fatal(`"a" should have been removed via the iterator`)
	}
	if !m.ContainsKey("b") {
		t.Fatal(`"b" should still be present`)
	}
}

func TestIteratorOnEmptyMapYieldsNothing(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	it := m.EntryIterator()
	if it.Next() {
		t.Fatal("Next() on empty map should return false")
	}
}

func TestValueIteratorMatchesEntries(t *testing.T) {
	m := newTestMap(t, Config[string, int]{})
	m.Put("a", 1)
	m.Put("b", 2)

	sum := 0
	it := m.ValueIterator()
	for it.Next() {
		sum += it.Value()
	}
	if sum != 3 {
		t.Fatalf("sum of iterated values = %d, want 3", sum)
	}
}

package stripedmap

import (
	"sort"
	"testing"
)

func TestInternSetAddContainsRemove(t *testing.T) {
	set, err := NewInternSet[string](InternSetConfig[string]{})
	if err != nil {
		t.Fatalf("NewInternSet() error = %v", err)
	}

	if added := set.Add("a"); !added {
		t.Fatal(`Add("a") should report true the first time`)
	}
	if added := set.Add("a"); added {
		t.Fatal(`Add("a") should report false the second time`)
	}
	if !set.Contains("a") {
		t.Fatal(`Contains("a") should be true`)
	}
	if set.Contains("b") {
		t.Fatal(`Contains("b") should be false`)
	}

	set.Add("b")
	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}

	keys := set.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys() = %v, want [a b]", keys)
	}

	if removed := set.Remove("a"); !removed {
		t.Fatal(`Remove("a") should report true`)
	}
	if set.Contains("a") {
		t.Fatal(`"a" should no longer be a member`)
	}
	if set.Len() != 1 {
		t.Fatalf("Len() after Remove = %d, want 1", set.Len())
	}
}

func TestInternSetDefaultConfigIsAccepted(t *testing.T) {
	// InternSetConfig has no value-strength field at all: DummyValue mode
	// always forces ValueStrength to Strong internally, so there is no way
	// to construct an invalid combination through this API.
	_, err := NewInternSet[string](InternSetConfig[string]{})
	if err != nil {
		t.Fatalf("NewInternSet() error = %v, want nil", err)
	}
}

package stripedmap

import "github.com/gostriped/stripedmap/refcell"

// InternSet is a concurrent string-interning set built on a dummy-value
// Map[K, struct{}] (spec §6.1's "optional dummy-value mode"): membership
// only, no per-entry value storage.
type InternSet[K comparable] struct {
	m *Map[K, struct{}]
}

// InternSetConfig configures an InternSet the same way Config configures a
// Map, minus the value-related fields (DummyValue mode fixes value strength
// and factory to Strong/StrongFactory automatically) and minus
// KeyEquivalence, so keys always use the default equivalence for their
// strength.
type InternSetConfig[K comparable] struct {
	InitialCapacity  int
	ConcurrencyLevel int
	LoadFactor       float64
	KeyStrength      refcell.Strength
	KeyCellFactory   refcell.Factory[K]
	Metrics          *Metrics
	Logger           Logger
}

// NewInternSet builds an InternSet from cfg.
func NewInternSet[K comparable](cfg InternSetConfig[K]) (*InternSet[K], error) {
	m, err := New[K, struct{}](Config[K, struct{}]{
		InitialCapacity:  cfg.InitialCapacity,
		ConcurrencyLevel: cfg.ConcurrencyLevel,
		LoadFactor:       cfg.LoadFactor,
		KeyStrength:      cfg.KeyStrength,
		KeyCellFactory:   cfg.KeyCellFactory,
		ValueStrength:    refcell.Strong,
		DummyValue:       true,
		Metrics:          cfg.Metrics,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &InternSet[K]{m: m}, nil
}

// Add inserts key, reporting whether it was newly added (false means it
// was already a member). A nil key fails silently to false rather than
// propagating an error, matching InternSet's boolean-only API; callers
// needing the distinction should use the underlying Map directly.
func (s *InternSet[K]) Add(key K) (added bool) {
	_, existed, err := s.m.PutIfAbsent(key, struct{}{})
	if err != nil {
		return false
	}
	return !existed
}

// Contains reports whether key is currently a member.
func (s *InternSet[K]) Contains(key K) bool {
	return s.m.ContainsKey(key)
}

// Remove removes key, reporting whether it had been a member.
func (s *InternSet[K]) Remove(key K) bool {
	_, removed := s.m.Remove(key)
	return removed
}

// Len returns the current number of members.
func (s *InternSet[K]) Len() int {
	return s.m.Size()
}

// Keys returns a snapshot slice of every current member.
func (s *InternSet[K]) Keys() []K {
	return s.m.Keys()
}

package stripedmap

import (
	"github.com/gostriped/stripedmap/hashmix"
	"github.com/gostriped/stripedmap/logger"
	"github.com/gostriped/stripedmap/refcell"
)

// Config configures a Map's storage shape and concurrency layout (spec
// §6.1). The zero Config is valid: it yields a strong/strong map with the
// package defaults below.
type Config[K comparable, V any] struct {
	// InitialCapacity is the starting bucket-array size of the whole map,
	// rounded up to a power of two, clamped to hashmix.MaxCapacity and then
	// divided evenly among the segments (at least 1 bucket each).
	// Zero means DefaultInitialCapacity.
	InitialCapacity int

	// ConcurrencyLevel is the target number of independently-lockable
	// segments, rounded up to a power of two and clamped to
	// hashmix.MaxSegments. Zero means DefaultConcurrencyLevel.
	ConcurrencyLevel int

	// LoadFactor controls when a segment expands; zero means
	// DefaultLoadFactor.
	LoadFactor float64

	// KeyStrength and ValueStrength select Strong (default) or Weak
	// reference semantics. Weak requires the matching *CellFactory field
	// below to be set for the concrete pointee type.
	KeyStrength   refcell.Strength
	ValueStrength refcell.Strength

	// KeyCellFactory and ValueCellFactory build the reference cell that
	// will hold a given key or value. Leave nil for Strong strength (New
	// fills in refcell.StrongFactory[K]()/[V]() automatically); for Weak
	// strength, supply refcell.WeakFactory[E]() where K or V is *E.
	KeyCellFactory   refcell.Factory[K]
	ValueCellFactory refcell.Factory[V]

	// KeyEquivalence overrides the default hash/equality strategy
	// (hashmix.Equals for Strong keys, hashmix.Identity for Weak keys).
	KeyEquivalence *hashmix.Equivalence[K]

	// ValueEqual overrides the equality used by ReplaceIfEqual and
	// RemoveIfEqual and by ContainsValue. Defaults to Go's == operator,
	// which requires V to be comparable at the call site; callers whose V
	// is not comparable (e.g. an interface holding a slice) must set this.
	ValueEqual func(a, b V) bool

	// DummyValue puts the map into intern-set mode: no per-entry value
	// storage, every live key reports present via a shared zero value.
	// Requires ValueStrength to be Strong (the zero value exists for the
	// life of the process, so tracking its reclamation is meaningless);
	// DummyValue combined with Weak values is rejected with
	// ErrInvalidArgument, per spec §6.1.
	DummyValue bool

	// Metrics, if set, receives live bookkeeping counters; see metrics.go.
	Metrics *Metrics

	// Logger receives diagnostic messages (map construction and Clear) at
	// Debug level; segment expansions and drains are not logged. Nil
	// disables logging.
	Logger Logger
}

// Logger is the diagnostic sink a Map reports to: the teacher's own
// logger.Logger interface, so callers can plug in glog.Glog (this repo's
// adapted wrapper around aristanetworks/glog) or any other implementation.
type Logger = logger.Logger

const (
	// DefaultInitialCapacity is used when Config.InitialCapacity is 0.
	DefaultInitialCapacity = 16
	// DefaultConcurrencyLevel is used when Config.ConcurrencyLevel is 0.
	DefaultConcurrencyLevel = 4
	// DefaultLoadFactor is used when Config.LoadFactor is 0.
	DefaultLoadFactor = 0.75
)

func (c Config[K, V]) withDefaults() Config[K, V] {
	if c.InitialCapacity == 0 {
		c.InitialCapacity = DefaultInitialCapacity
	}
	if c.ConcurrencyLevel == 0 {
		c.ConcurrencyLevel = DefaultConcurrencyLevel
	}
	if c.LoadFactor == 0 {
		c.LoadFactor = DefaultLoadFactor
	}
	if c.KeyCellFactory == nil && c.KeyStrength == refcell.Strong {
		c.KeyCellFactory = refcell.StrongFactory[K]()
	}
	if c.ValueCellFactory == nil && c.ValueStrength == refcell.Strong {
		c.ValueCellFactory = refcell.StrongFactory[V]()
	}
	if c.KeyEquivalence == nil {
		var eq hashmix.Equivalence[K]
		if c.KeyStrength == refcell.Weak {
			eq = hashmix.Identity[K]()
		} else {
			eq = hashmix.Equals[K]()
		}
		c.KeyEquivalence = &eq
	}
	return c
}

func (c Config[K, V]) validate() error {
	if c.InitialCapacity < 0 || c.ConcurrencyLevel < 0 {
		return ErrInvalidArgument
	}
	if c.DummyValue && c.ValueStrength == refcell.Weak {
		return ErrInvalidArgument
	}
	if c.KeyStrength == refcell.Weak && c.KeyCellFactory == nil {
		return ErrInvalidArgument
	}
	if c.ValueStrength == refcell.Weak && c.ValueCellFactory == nil {
		return ErrInvalidArgument
	}
	return nil
}

// Package refcell implements the reference-cell abstraction a segment uses
// to hold a key or a value: either Strong (direct ownership) or Weak
// (observes the host runtime's reachability machinery without extending the
// referent's lifetime).
//
// Weak cells are built on Go's weak.Pointer and runtime.AddCleanup (Go
// 1.24+), which together are the closest analogue to a tracing GC's weak
// reference plus reference queue: AddCleanup schedules a callback once its
// target becomes unreachable, and that callback is used here to push a
// notification onto a per-segment Queue, exactly as the spec requires of
// "any host primitive that reports reclamation."
package refcell

import (
	"runtime"
	"weak"
)

// Strength identifies whether a cell directly owns its referent or merely
// observes it.
type Strength int

const (
	// Strong cells own their referent; Get always succeeds.
	Strong Strength = iota
	// Weak cells observe their referent; Get fails once the host runtime
	// has reclaimed it.
	Weak
)

func (s Strength) String() string {
	if s == Weak {
		return "weak"
	}
	return "strong"
}

// Cell is a reference cell: a strong cell owns T directly, a weak cell
// observes a *E through weak.Pointer[E] (so weak cells always instantiate
// Cell with a pointer-shaped T; see NewWeak).
type Cell[T any] interface {
	// Get returns the referent and true if it is still present. For a
	// strong cell this is always true. For a weak cell this transitions
	// to false the moment the runtime reclaims the referent.
	Get() (T, bool)
}

// strongCell directly owns its value.
type strongCell[T any] struct{ v T }

// NewStrong builds a Cell that owns v directly and never reports absent.
func NewStrong[T any](v T) Cell[T] {
	return strongCell[T]{v: v}
}

func (c strongCell[T]) Get() (T, bool) { return c.v, true }

// weakCell observes *E via a weak pointer.
type weakCell[E any] struct {
	ptr weak.Pointer[E]
}

// NewWeak builds a Cell[*E] observing ptr without extending its lifetime.
// When the host runtime determines ptr is unreachable, it schedules a
// cleanup that pushes a notification carrying token onto queue; queue is
// nil-safe (a nil queue silently drops the notification, used by callers
// that don't need reclamation tracking, e.g. tests).
//
// ptr must be non-nil; a nil ptr has no object for the runtime to track
// reachability of. With a queue attached it panics inside
// runtime.AddCleanup; with a nil queue it yields a cell that always reports
// absent.
func NewWeak[E any](ptr *E, queue *Queue, token uint64) Cell[*E] {
	wp := weak.Make(ptr)
	if queue != nil {
		runtime.AddCleanup(ptr, func(tok uint64) {
			queue.push(notification{token: tok})
		}, token)
	}
	return &weakCell[E]{ptr: wp}
}

func (c *weakCell[E]) Get() (*E, bool) {
	p := c.ptr.Value()
	if p == nil {
		return nil, false
	}
	return p, true
}

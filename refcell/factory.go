package refcell

// Factory builds the Cell that will hold one key or value of type T inside
// a newly-constructed entry. queue is the segment's reclamation queue (nil
// for strong cells, which never need one) and token is the generation the
// resulting cell is being installed under.
type Factory[T any] func(v T, queue *Queue, token uint64) Cell[T]

// StrongFactory returns the trivial Factory for strong cells: it ignores
// queue and token and always returns a cell that owns v directly.
func StrongFactory[T any]() Factory[T] {
	return func(v T, _ *Queue, _ uint64) Cell[T] {
		return NewStrong(v)
	}
}

// WeakFactory returns the Factory for weak cells over pointer-shaped type
// *E. Go's weak.Pointer[E] must be parameterized by the exact pointee type,
// which generic code operating on an abstract comparable type parameter K
// cannot discover on its own — so a caller configuring a weak-keyed or
// weak-valued map supplies WeakFactory[E]() explicitly, once, for the
// concrete element type E their map's K or V instantiates to (K/V must then
// literally be *E).
func WeakFactory[E any]() Factory[*E] {
	return func(v *E, queue *Queue, token uint64) Cell[*E] {
		return NewWeak(v, queue, token)
	}
}

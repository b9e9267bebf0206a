package hashmix

import "hash/maphash"

// Equivalence defines how a segment hashes and compares keys of type K. It
// plays the role the spec calls "the configured equivalence": value
// equality for strong keys by default, identity for weak keys by default,
// and an escape hatch for callers who need something else (e.g.
// case-insensitive string keys).
type Equivalence[K comparable] struct {
	Hash  func(K) uint64
	Equal func(a, b K) bool
}

var seed = maphash.MakeSeed()

// Equals returns the default equivalence for strong keys: Go's built-in
// value equality (==), hashed with maphash.Comparable the same way
// key/hash.go mixes each field of a composite key through maphash.Hash
// before combining them.
func Equals[K comparable]() Equivalence[K] {
	return Equivalence[K]{
		Hash:  func(k K) uint64 { return maphash.Comparable(seed, k) },
		Equal: func(a, b K) bool { return a == b },
	}
}

// Identity returns the default equivalence for weak keys. In Go, == on a
// pointer-shaped comparable type already compares addresses rather than
// pointee contents, so Identity coincides with Equals for the pointer types
// weak keys require (see refcell.NewWeak) — the two are kept as distinct
// constructors so a weak-keyed map's intent is documented at the call site,
// and so a future non-== identity notion has a seam to live in.
func Identity[K comparable]() Equivalence[K] {
	return Equivalence[K]{
		Hash:  func(k K) uint64 { return maphash.Comparable(seed, k) },
		Equal: func(a, b K) bool { return a == b },
	}
}

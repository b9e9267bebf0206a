// Package monotime provides a monotonic clock source, used by the
// benchmarking tooling to time operation batches. It is built on the
// monotonic reading that time.Now() carries, so each call still costs one
// time.Now().
package monotime

import "time"

// Now returns the current value of the monotonic clock, in nanoseconds.
// The absolute value is meaningless; only differences between two calls to
// Now are meaningful. time.Now() already carries a monotonic reading
// alongside its wall clock component (see the "Monotonic Clocks" section of
// the time package docs); Sub extracts just that reading without the
// wall-clock reconciliation a raw subtraction of two Unix timestamps would
// need.
func Now() uint64 {
	return uint64(time.Now().Sub(epoch))
}

// epoch anchors the nanosecond offsets Now returns; only its monotonic
// reading, taken once at package init, is ever used.
var epoch = time.Now()

// Since returns the duration elapsed since t, where t was obtained via Now.
func Since(t uint64) time.Duration {
	return time.Duration(Now() - t)
}

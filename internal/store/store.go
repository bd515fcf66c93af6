// Package store implements the key -> theoretical-arrival-time map used by
// the GCRA engine, along with three TTL eviction policies that share one
// contract so the engine can be written once (see internal/gcra).
package store

import "time"

// Store is the contract the GCRA engine needs from a key->TAT map. A single
// actor goroutine owns every call, so atomicity is intrinsic to the
// implementations in this package; the CAS-style signature is kept anyway so
// the engine's code would not need to change against a future concurrent
// backend.
type Store interface {
	// Get returns the stored TAT (nanoseconds since epoch) for key if it
	// exists and has not expired at now.
	Get(key string, now time.Time) (tatNanos int64, ok bool)

	// SetIfNotExistsWithTTL inserts tatNanos for key only if the key is
	// absent or expired. Returns whether the insert happened.
	SetIfNotExistsWithTTL(key string, tatNanos int64, ttl time.Duration, now time.Time) bool

	// CompareAndSwapWithTTL overwrites key's value with newTAT, and resets
	// its expiry to now+ttl, iff the current stored value exists, is not
	// expired, and equals oldTAT.
	CompareAndSwapWithTTL(key string, oldTAT, newTAT int64, ttl time.Duration, now time.Time) bool

	// Len reports an approximate live size; it is not adjusted between
	// sweeps and callers must not rely on it being exact.
	Len() int

	// Close releases any background resources (e.g. a cleanup goroutine).
	Close()
}

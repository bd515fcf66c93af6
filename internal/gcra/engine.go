// Package gcra implements the Generic Cell Rate Algorithm decision engine
// (C1 rate arithmetic, C3 engine) on top of a pluggable key->TAT store.
package gcra

import (
	"time"

	"github.com/ratelimitd/ratelimitd/internal/store"
	"github.com/ratelimitd/ratelimitd/internal/types"
)

// maxCASAttempts bounds the engine's get/CAS retry loop. The engine always
// runs inside a single-writer actor (internal/actor), so a commit fails here
// only if a concurrent store backend is swapped in or the store refuses the
// key outright (a full store.ArenaStore); the bound exists so such a store
// can never spin the engine forever.
const maxCASAttempts = 1000

// Verdict is the four-field decision the engine reports for one request.
type Verdict struct {
	Limit      int64
	Remaining  int64
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// ToTypes converts an engine Verdict into the transport-neutral shape used
// to build a ThrottleResponse.
func (v Verdict) ToTypes() types.Verdict {
	return types.Verdict{
		Limit:      v.Limit,
		Remaining:  v.Remaining,
		ResetAfter: v.ResetAfter,
		RetryAfter: v.RetryAfter,
	}
}

// Engine runs the GCRA computation against one Store.
type Engine struct {
	store store.Store
}

// New wraps the given store in a GCRA decision engine.
func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// RateLimit decides whether a request for quantity units against key, given
// maxBurst/countPerPeriod/period, may proceed at now. All arithmetic is
// carried out in nanoseconds.
func (e *Engine) RateLimit(key string, maxBurst, countPerPeriod int64, period time.Duration, quantity int64, now time.Time) (allowed bool, verdict Verdict, err error) {
	if quantity < 0 {
		return false, Verdict{}, ErrNegativeQuantity
	}
	if maxBurst <= 0 || countPerPeriod <= 0 || period <= 0 {
		return false, Verdict{}, ErrInvalidParameters
	}

	emission := EmissionInterval(countPerPeriod, period)
	dvt := emission * time.Duration(maxBurst)
	increment := emission * time.Duration(quantity)
	ttl := dvt + emission

	nowNanos := now.UnixNano()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		tatExisting, existed := e.store.Get(key, now)

		tat := nowNanos
		if existed {
			tat = tatExisting
		}

		base := tat
		if nowNanos > base {
			base = nowNanos
		}
		newTAT := base + int64(increment)
		allowAt := newTAT - int64(dvt)

		if nowNanos < allowAt {
			// Rejected: the store is not mutated.
			remaining := remainingAt(newTAT, nowNanos, dvt, emission, maxBurst)
			return false, Verdict{
				Limit:      maxBurst,
				Remaining:  remaining,
				ResetAfter: time.Duration(newTAT - nowNanos),
				RetryAfter: time.Duration(allowAt - nowNanos),
			}, nil
		}

		var committed bool
		if existed {
			committed = e.store.CompareAndSwapWithTTL(key, tat, newTAT, ttl, now)
		} else {
			committed = e.store.SetIfNotExistsWithTTL(key, newTAT, ttl, now)
		}
		if !committed {
			continue
		}

		remaining := remainingAt(newTAT, nowNanos, dvt, emission, maxBurst)
		return true, Verdict{
			Limit:      maxBurst,
			Remaining:  remaining,
			ResetAfter: time.Duration(newTAT - nowNanos),
			RetryAfter: 0,
		}, nil
	}

	// Reached only when the store refused every commit: a full arena, or a
	// concurrent backend that never converges after maxCASAttempts.
	return false, Verdict{}, ErrStoreContention
}

// remainingAt computes how many further units of quantity=1 the bucket could
// absorb right now, given the just-computed newTAT.
func remainingAt(newTAT, nowNanos int64, dvt, emission time.Duration, maxBurst int64) int64 {
	behind := time.Duration(newTAT - nowNanos)
	headroom := dvt - behind
	if headroom <= 0 {
		return 0
	}
	remaining := int64(headroom / emission)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > maxBurst {
		remaining = maxBurst
	}
	return remaining
}

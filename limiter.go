package ratelimitd

import (
	"context"
	"fmt"
	"time"

	"github.com/ratelimitd/ratelimitd/internal/actor"
	"github.com/ratelimitd/ratelimitd/internal/gcra"
	"github.com/ratelimitd/ratelimitd/internal/store"
	"github.com/ratelimitd/ratelimitd/internal/types"
)

// Verdict is the four-field decision returned by Allow.
type Verdict = gcra.Verdict

// maxKeyLen matches the native protocol's one-byte key_len field (spec §4.5).
const maxKeyLen = 255

// Limiter is the embeddable, in-process form of the rate limiter: it owns
// one actor goroutine and hands out a cheap Handle-backed API to callers.
type Limiter struct {
	a      *actor.Actor
	handle actor.Handle
}

// New builds and starts a Limiter with the given options.
func New(opts ...Option) (*Limiter, error) {
	cfg := defaultLimiterConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("ratelimitd: invalid option: %w", err)
		}
	}

	var s store.Store
	switch cfg.policy {
	case "periodic":
		s = store.NewPeriodicStore(cfg.capacityHint, cfg.cleanupInterval)
	case "probabilistic":
		s = store.NewProbabilisticStore(cfg.capacityHint, cfg.cleanupProb)
	case "adaptive":
		s = store.NewAdaptiveStore(cfg.capacityHint, cfg.adaptiveMin, cfg.adaptiveMax, cfg.adaptiveMaxOps)
	case "arena":
		s = store.NewArenaStore(cfg.arenaCapacity)
	default:
		return nil, fmt.Errorf("ratelimitd: unknown store policy %q", cfg.policy)
	}

	a := actor.New(s, cfg.inboxSize)
	go a.Run()

	return &Limiter{a: a, handle: actor.NewHandle(a)}, nil
}

// Allow decides whether quantity units may be drawn for key, given a burst
// allowance of maxBurst and a steady refill of countPerPeriod units every
// period. now is the decision instant; pass time.Now() in production code.
func (l *Limiter) Allow(ctx context.Context, key string, maxBurst, countPerPeriod int64, period time.Duration, quantity int64, now time.Time) (allowed bool, verdict Verdict, err error) {
	if len(key) == 0 || len(key) > maxKeyLen {
		return false, Verdict{}, fmt.Errorf("ratelimitd: key must be 1..%d bytes, got %d", maxKeyLen, len(key))
	}

	allowed, verdict, err = l.handle.Throttle(ctx, types.ThrottleRequest{
		Key:            key,
		MaxBurst:       maxBurst,
		CountPerPeriod: countPerPeriod,
		PeriodSeconds:  int64(period / time.Second),
		Quantity:       quantity,
		Timestamp:      now,
	}, now)
	return allowed, verdict, err
}

// Len reports the store's approximate live key count.
func (l *Limiter) Len() int { return l.a.Len() }

// Close stops the actor goroutine. It must be called at most once, and only
// after every in-flight Allow call has returned.
func (l *Limiter) Close() {
	l.a.Stop()
}

package ratelimitd

import (
	"fmt"
	"time"

	"github.com/ratelimitd/ratelimitd/internal/store"
)

// Option configures a Limiter at construction time.
type Option func(*limiterConfig) error

type limiterConfig struct {
	policy string

	capacityHint int
	inboxSize    int

	cleanupInterval time.Duration
	cleanupProb     float64
	adaptiveMin     time.Duration
	adaptiveMax     time.Duration
	adaptiveMaxOps  int
	arenaCapacity   int
}

func defaultLimiterConfig() limiterConfig {
	return limiterConfig{
		policy:          "periodic",
		capacityHint:    256,
		inboxSize:       256,
		cleanupInterval: store.DefaultCleanupInterval,
		cleanupProb:     store.DefaultCleanupProbability,
		adaptiveMin:     store.DefaultAdaptiveMinInterval,
		adaptiveMax:     store.DefaultAdaptiveMaxInterval,
		adaptiveMaxOps:  store.DefaultAdaptiveMaxOperations,
		arenaCapacity:   10_000,
	}
}

// WithPeriodicStore selects the periodic eviction policy (the default),
// sweeping on a fixed wall-clock schedule.
func WithPeriodicStore(cleanupInterval time.Duration) Option {
	return func(c *limiterConfig) error {
		c.policy = "periodic"
		if cleanupInterval > 0 {
			c.cleanupInterval = cleanupInterval
		}
		return nil
	}
}

// WithProbabilisticStore selects the probabilistic eviction policy,
// sweeping with the given probability on every mutating call.
func WithProbabilisticStore(probability float64) Option {
	return func(c *limiterConfig) error {
		c.policy = "probabilistic"
		if probability > 0 {
			c.cleanupProb = probability
		}
		return nil
	}
}

// WithAdaptiveStore selects the adaptive eviction policy, which tunes its
// own sweep interval between minInterval and maxInterval based on observed
// churn, also sweeping after maxOperations mutating calls.
func WithAdaptiveStore(minInterval, maxInterval time.Duration, maxOperations int) Option {
	return func(c *limiterConfig) error {
		c.policy = "adaptive"
		if minInterval > 0 {
			c.adaptiveMin = minInterval
		}
		if maxInterval > 0 {
			c.adaptiveMax = maxInterval
		}
		if maxOperations > 0 {
			c.adaptiveMaxOps = maxOperations
		}
		return nil
	}
}

// WithArenaStore selects the capacity-bounded arena experiment (see
// DESIGN.md); it is not a default and is intended for explicit opt-in only.
func WithArenaStore(capacity int) Option {
	return func(c *limiterConfig) error {
		c.policy = "arena"
		if capacity > 0 {
			c.arenaCapacity = capacity
		}
		return nil
	}
}

// WithCapacityHint sets the store's initial capacity hint.
func WithCapacityHint(n int) Option {
	return func(c *limiterConfig) error {
		if n < 0 {
			return fmt.Errorf("capacity hint must not be negative, got %d", n)
		}
		c.capacityHint = n
		return nil
	}
}

// WithInboxSize sets the bound on the actor's inbox (back-pressure kicks in
// once it is full).
func WithInboxSize(n int) Option {
	return func(c *limiterConfig) error {
		if n <= 0 {
			return fmt.Errorf("inbox size must be positive, got %d", n)
		}
		c.inboxSize = n
		return nil
	}
}

package store

import (
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultCleanupProbability is the default chance that any given mutating
// call triggers a full sweep. The source this package is grounded on leaves
// the constant without a principled derivation (see DESIGN.md); 1/256 gives
// amortized O(1) overhead independent of wall-clock while still sweeping
// promptly under steady traffic.
const DefaultCleanupProbability = 1.0 / 256.0

// ProbabilisticStore sweeps expired entries with a fixed probability on
// every mutating call, rather than on a wall-clock schedule.
type ProbabilisticStore struct {
	mu          sync.Mutex
	entries     map[string]entry
	probability float64
}

// NewProbabilisticStore creates a ProbabilisticStore. A probability outside
// (0, 1] falls back to DefaultCleanupProbability.
func NewProbabilisticStore(capacityHint int, probability float64) *ProbabilisticStore {
	if probability <= 0 || probability > 1 {
		probability = DefaultCleanupProbability
	}
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &ProbabilisticStore{
		entries:     make(map[string]entry, capacityHint),
		probability: probability,
	}
}

// maybeSweep runs under s.mu.
func (s *ProbabilisticStore) maybeSweep(now time.Time) {
	if rand.Float64() < s.probability {
		sweep(s.entries, now)
	}
}

func (s *ProbabilisticStore) Get(key string, now time.Time) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		return 0, false
	}
	return e.tatNanos, true
}

func (s *ProbabilisticStore) SetIfNotExistsWithTTL(key string, tatNanos int64, ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeSweep(now)

	if e, ok := s.entries[key]; ok && !e.expired(now) {
		return false
	}
	s.entries[key] = entry{tatNanos: tatNanos, expiry: now.Add(ttl)}
	return true
}

func (s *ProbabilisticStore) CompareAndSwapWithTTL(key string, oldTAT, newTAT int64, ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeSweep(now)

	e, ok := s.entries[key]
	if !ok || e.expired(now) || e.tatNanos != oldTAT {
		return false
	}
	s.entries[key] = entry{tatNanos: newTAT, expiry: now.Add(ttl)}
	return true
}

func (s *ProbabilisticStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ProbabilisticStore) Close() {}

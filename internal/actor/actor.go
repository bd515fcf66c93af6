// Package actor owns the GCRA engine and its store behind a bounded inbox,
// so that state mutation happens on exactly one goroutine (C4). Producers
// talk to it only through Handle, by message passing.
package actor

import (
	"context"
	"time"

	"github.com/ratelimitd/ratelimitd/internal/gcra"
	"github.com/ratelimitd/ratelimitd/internal/store"
	"github.com/ratelimitd/ratelimitd/internal/types"
)

// request is the single message type the actor understands: run the engine
// and reply on replyTo. An abandoned replyTo is tolerated — the actor's send
// is non-blocking, so it never waits to deliver a reply nobody will read.
type request struct {
	in      types.ThrottleRequest
	now     time.Time
	replyTo chan<- reply
}

type reply struct {
	allowed bool
	verdict gcra.Verdict
	err     error
}

// Actor drains a bounded inbox and is the sole mutator of its engine/store.
type Actor struct {
	engine *gcra.Engine
	store  store.Store
	inbox  chan request
	done   chan struct{}
}

// DefaultInboxSize is the default bound on the number of in-flight requests
// a producer may queue before it starts applying back-pressure.
const DefaultInboxSize = 1024

// New builds an actor around an arbitrary store, for callers that need a
// policy beyond the three named constructors below (e.g. the arena
// experiment in internal/store).
func New(s store.Store, inboxSize int) *Actor {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Actor{
		engine: gcra.New(s),
		store:  s,
		inbox:  make(chan request, inboxSize),
		done:   make(chan struct{}),
	}
}

// NewPeriodic builds an actor backed by a periodic-sweep store.
func NewPeriodic(capacityHint int, cleanupInterval time.Duration, inboxSize int) *Actor {
	return New(store.NewPeriodicStore(capacityHint, cleanupInterval), inboxSize)
}

// NewProbabilistic builds an actor backed by a probabilistic-sweep store.
func NewProbabilistic(capacityHint int, cleanupProbability float64, inboxSize int) *Actor {
	return New(store.NewProbabilisticStore(capacityHint, cleanupProbability), inboxSize)
}

// NewAdaptive builds an actor backed by an adaptive-sweep store.
func NewAdaptive(capacityHint int, minInterval, maxInterval time.Duration, maxOperations, inboxSize int) *Actor {
	return New(store.NewAdaptiveStore(capacityHint, minInterval, maxInterval, maxOperations), inboxSize)
}

// Run drains the inbox until Stop closes it. It is meant to be run on its
// own goroutine; Run itself never spawns one.
func (a *Actor) Run() {
	defer close(a.done)
	for req := range a.inbox {
		allowed, verdict, err := a.engine.RateLimit(
			req.in.Key,
			req.in.MaxBurst,
			req.in.CountPerPeriod,
			time.Duration(req.in.PeriodSeconds)*time.Second,
			req.in.Quantity,
			req.now,
		)

		select {
		case req.replyTo <- reply{allowed: allowed, verdict: verdict, err: err}:
		default:
			// Caller already gave up on the reply channel; discard.
		}
	}
	a.store.Close()
}

// Stop closes the inbox, causing Run to drain remaining messages and
// return. Stop must be called at most once.
func (a *Actor) Stop() {
	close(a.inbox)
	<-a.done
}

// Len reports the store's approximate live key count, for metrics.
func (a *Actor) Len() int { return a.store.Len() }

// Handle is the producer-facing API: a cheap, copyable reference that
// submits Throttle messages to the actor's inbox.
type Handle struct {
	inbox chan<- request
}

// NewHandle wraps an actor's inbox for producers.
func NewHandle(a *Actor) Handle {
	return Handle{inbox: a.inbox}
}

// Throttle enqueues a decision request and waits for the actor's reply, or
// for ctx to be done, or for the actor to have shut down.
func (h Handle) Throttle(ctx context.Context, in types.ThrottleRequest, now time.Time) (allowed bool, verdict gcra.Verdict, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, gcra.Verdict{}, ctxErr
	}
	// Stop closes the inbox, and a send on a closed channel panics; that is
	// reported to the caller as ErrUnavailable.
	defer func() {
		if recover() != nil {
			allowed, verdict, err = false, gcra.Verdict{}, ErrUnavailable
		}
	}()

	replyTo := make(chan reply, 1)

	select {
	case h.inbox <- request{in: in, now: now, replyTo: replyTo}:
	case <-ctx.Done():
		return false, gcra.Verdict{}, ctx.Err()
	}

	select {
	case r, ok := <-replyTo:
		if !ok {
			return false, gcra.Verdict{}, ErrUnavailable
		}
		return r.allowed, r.verdict, r.err
	case <-ctx.Done():
		return false, gcra.Verdict{}, ctx.Err()
	}
}

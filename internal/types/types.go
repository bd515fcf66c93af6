// Package types holds the request/response DTOs shared between every
// transport and the actor (C7), plus translation helpers to and from the
// GCRA engine's verdict.
package types

import "time"

// ThrottleRequest is the transport-neutral shape every adapter (native,
// HTTP, RPC) translates its own wire format into before handing it to the
// actor.
type ThrottleRequest struct {
	Key            string
	MaxBurst       int64
	CountPerPeriod int64
	PeriodSeconds  int64
	Quantity       int64
	Timestamp      time.Time
}

// ThrottleResponse is the transport-neutral verdict translated back into
// each adapter's own wire format.
type ThrottleResponse struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds int64
	ResetAfterSeconds int64
}

// Verdict mirrors the fields gcra.Verdict carries, without internal/types
// importing internal/gcra (kept dependency-free so both the wire and
// transport packages can build a ThrottleResponse from their own call
// site's verdict value).
type Verdict struct {
	Limit      int64
	Remaining  int64
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// NewThrottleResponse truncates a Verdict's durations to whole seconds, per
// spec §4.3 ("reported units").
func NewThrottleResponse(allowed bool, v Verdict) ThrottleResponse {
	return ThrottleResponse{
		Allowed:           allowed,
		Limit:             v.Limit,
		Remaining:         v.Remaining,
		RetryAfterSeconds: int64(v.RetryAfter / time.Second),
		ResetAfterSeconds: int64(v.ResetAfter / time.Second),
	}
}

package rpc

// ThrottleRequest is the RPC collaborator's wire message, matching
// ratelimit.proto. It is plain Go — not protoc-generated — and is marshaled
// by jsonCodec rather than protobuf's binary wire format (see DESIGN.md).
type ThrottleRequest struct {
	Key            string `json:"key"`
	MaxBurst       int64  `json:"max_burst"`
	CountPerPeriod int64  `json:"count_per_period"`
	Period         int64  `json:"period"`
	Quantity       int64  `json:"quantity"`
	TimestampSecs  int64  `json:"timestamp_secs"`
	TimestampNanos int64  `json:"timestamp_nanos"`
}

// ThrottleResponse is the RPC collaborator's wire response, matching
// ratelimit.proto.
type ThrottleResponse struct {
	Allowed    bool  `json:"allowed"`
	Limit      int64 `json:"limit"`
	Remaining  int64 `json:"remaining"`
	ResetAfter int64 `json:"reset_after"`
	RetryAfter int64 `json:"retry_after"`
}

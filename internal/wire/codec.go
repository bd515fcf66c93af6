// Package wire implements the native binary protocol (C5): a fixed
// 42-byte request header with a trailing key, and a fixed 34-byte response,
// all little-endian. See spec §4.5 for the exact layout.
package wire

import (
	"encoding/binary"
	"time"

	"github.com/ratelimitd/ratelimitd/internal/types"
)

const (
	// CmdThrottle is the only defined request command; others are reserved.
	CmdThrottle = byte(1)

	// RequestHeaderSize is the fixed portion of a request, before the key.
	RequestHeaderSize = 42

	// ResponseSize is the fixed, whole size of a response.
	ResponseSize = 34
)

// Request is the decoded form of one native-protocol request.
type Request struct {
	Cmd       byte
	Key       []byte
	MaxBurst  int64
	Count     int64
	PeriodNs  int64
	Quantity  int64
	Timestamp int64 // nanoseconds since epoch, client wall clock
}

// DecodeHeader parses the fixed 42-byte header from buf. It does not
// validate cmd or key_len beyond bounds-checking buf's length; callers
// combine this with key_len to know how many further bytes to read.
func DecodeHeader(buf []byte) (Request, error) {
	if len(buf) < RequestHeaderSize {
		return Request{}, ErrShortBuffer
	}
	return Request{
		Cmd:       buf[0],
		MaxBurst:  int64(binary.LittleEndian.Uint64(buf[2:10])),
		Count:     int64(binary.LittleEndian.Uint64(buf[10:18])),
		PeriodNs:  int64(binary.LittleEndian.Uint64(buf[18:26])),
		Quantity:  int64(binary.LittleEndian.Uint64(buf[26:34])),
		Timestamp: int64(binary.LittleEndian.Uint64(buf[34:42])),
	}, nil
}

// KeyLen returns the key_len field out of a header buffer of at least
// RequestHeaderSize bytes.
func KeyLen(buf []byte) byte {
	return buf[1]
}

// Validate checks the parts of a decoded request the engine itself cannot:
// the command byte and the key length. Engine-level validation (burst,
// count, period, quantity) is left to the GCRA engine.
func Validate(cmd byte, keyLen byte) error {
	if cmd != CmdThrottle {
		return ErrMalformedFrame
	}
	if keyLen == 0 {
		return ErrMalformedFrame
	}
	return nil
}

// ToThrottleRequest translates a decoded wire Request plus its key bytes
// into the transport-neutral DTO. The client-supplied timestamp is carried
// through for transports that choose to honor it; the native listener
// itself uses server wall-clock time per spec §4.5.
func ToThrottleRequest(r Request, key []byte) types.ThrottleRequest {
	return types.ThrottleRequest{
		Key:            string(key),
		MaxBurst:       r.MaxBurst,
		CountPerPeriod: r.Count,
		PeriodSeconds:  r.PeriodNs / int64(time.Second),
		Quantity:       r.Quantity,
		Timestamp:      time.Unix(0, r.Timestamp),
	}
}

// EncodeResponse writes a 34-byte response into buf (which must be at least
// ResponseSize long) for a successful decision.
func EncodeResponse(buf []byte, resp types.ThrottleResponse) {
	buf[0] = 1 // ok
	if resp.Allowed {
		buf[1] = 1
	} else {
		buf[1] = 0
	}
	binary.LittleEndian.PutUint64(buf[2:10], uint64(resp.Limit))
	binary.LittleEndian.PutUint64(buf[10:18], uint64(resp.Remaining))
	binary.LittleEndian.PutUint64(buf[18:26], uint64(resp.RetryAfterSeconds))
	binary.LittleEndian.PutUint64(buf[26:34], uint64(resp.ResetAfterSeconds))
}

// EncodeErrorResponse writes the ok=0, all-numeric-fields-zero response
// mandated by spec §4.5 for malformed frames or engine validation errors.
func EncodeErrorResponse(buf []byte) {
	for i := range buf[:ResponseSize] {
		buf[i] = 0
	}
}

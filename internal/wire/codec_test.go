package wire

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratelimitd/ratelimitd/internal/types"
)

func encodeHeader(cmd, keyLen byte, maxBurst, count, periodNs, quantity, timestamp int64) []byte {
	buf := make([]byte, RequestHeaderSize)
	buf[0] = cmd
	buf[1] = keyLen
	binary.LittleEndian.PutUint64(buf[2:10], uint64(maxBurst))
	binary.LittleEndian.PutUint64(buf[10:18], uint64(count))
	binary.LittleEndian.PutUint64(buf[18:26], uint64(periodNs))
	binary.LittleEndian.PutUint64(buf[26:34], uint64(quantity))
	binary.LittleEndian.PutUint64(buf[34:42], uint64(timestamp))
	return buf
}

func TestDecodeHeaderRoundTrip(t *testing.T) {
	buf := encodeHeader(CmdThrottle, 3, 5, 10, int64(60*time.Second), 1, 1000)

	req, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, CmdThrottle, req.Cmd)
	assert.Equal(t, int64(5), req.MaxBurst)
	assert.Equal(t, int64(10), req.Count)
	assert.Equal(t, int64(60*time.Second), req.PeriodNs)
	assert.Equal(t, int64(1), req.Quantity)
	assert.Equal(t, int64(1000), req.Timestamp)
	assert.Equal(t, byte(3), KeyLen(buf))
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	_, err := DecodeHeader(make([]byte, RequestHeaderSize-1))
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(CmdThrottle, 1))
	assert.ErrorIs(t, Validate(0x7f, 1), ErrMalformedFrame)
	assert.ErrorIs(t, Validate(CmdThrottle, 0), ErrMalformedFrame)
}

func TestToThrottleRequest(t *testing.T) {
	req := Request{
		Cmd:       CmdThrottle,
		MaxBurst:  5,
		Count:     10,
		PeriodNs:  int64(60 * time.Second),
		Quantity:  1,
		Timestamp: int64(2 * time.Second),
	}

	out := ToThrottleRequest(req, []byte("abc"))
	assert.Equal(t, "abc", out.Key)
	assert.Equal(t, int64(5), out.MaxBurst)
	assert.Equal(t, int64(10), out.CountPerPeriod)
	assert.Equal(t, int64(60), out.PeriodSeconds)
	assert.Equal(t, int64(1), out.Quantity)
	assert.Equal(t, time.Unix(0, int64(2*time.Second)), out.Timestamp)
}

func TestEncodeResponseRoundTrip(t *testing.T) {
	buf := make([]byte, ResponseSize)
	EncodeResponse(buf, types.ThrottleResponse{
		Allowed:           true,
		Limit:             5,
		Remaining:         4,
		RetryAfterSeconds: 0,
		ResetAfterSeconds: 6,
	})

	assert.Equal(t, byte(1), buf[0])
	assert.Equal(t, byte(1), buf[1])
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(buf[2:10]))
	assert.Equal(t, uint64(4), binary.LittleEndian.Uint64(buf[10:18]))
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(buf[18:26]))
	assert.Equal(t, uint64(6), binary.LittleEndian.Uint64(buf[26:34]))
}

func TestEncodeErrorResponseIsAllZero(t *testing.T) {
	buf := make([]byte, ResponseSize)
	for i := range buf {
		buf[i] = 0xff
	}
	EncodeErrorResponse(buf)

	for i, b := range buf {
		assert.Equalf(t, byte(0), b, "byte %d should be zeroed", i)
	}
}

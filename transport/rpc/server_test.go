package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratelimitd/ratelimitd/internal/actor"
)

func newTestServer(t *testing.T) (ThrottleServiceServer, func()) {
	t.Helper()
	a := actor.NewPeriodic(16, time.Minute, 8)
	go a.Run()
	return NewServer(actor.NewHandle(a)), a.Stop
}

func TestThrottleAcceptsAndReportsRemaining(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	resp, err := srv.Throttle(context.Background(), &ThrottleRequest{
		Key: "k", MaxBurst: 5, CountPerPeriod: 10, Period: 60, Quantity: 1,
		TimestampSecs: 0,
	})
	require.NoError(t, err)
	assert.True(t, resp.Allowed)
	assert.Equal(t, int64(5), resp.Limit)
	assert.Equal(t, int64(4), resp.Remaining)
}

func TestThrottleDefaultsTimestampToNowWhenUnset(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	resp, err := srv.Throttle(context.Background(), &ThrottleRequest{
		Key: "k", MaxBurst: 5, CountPerPeriod: 10, Period: 60, Quantity: 1,
	})
	require.NoError(t, err)
	assert.True(t, resp.Allowed)
}

func TestThrottleSurfacesEngineErrorsAsInvalidArgument(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	_, err := srv.Throttle(context.Background(), &ThrottleRequest{
		Key: "k", MaxBurst: 0, CountPerPeriod: 10, Period: 60, Quantity: 1,
	})
	assert.Error(t, err)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	in := &ThrottleRequest{Key: "k", MaxBurst: 5, CountPerPeriod: 10, Period: 60, Quantity: 1}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := &ThrottleRequest{}
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, in, out)
	assert.Equal(t, "ratelimitd-json", c.Name())
}

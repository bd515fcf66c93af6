package ratelimitd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratelimitd/ratelimitd/internal/gcra"
)

func TestLimiterAllowBurstCap(t *testing.T) {
	l, err := New(WithPeriodicStore(time.Minute))
	require.NoError(t, err)
	defer l.Close()

	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		allowed, _, err := l.Allow(context.Background(), "k", 5, 10, time.Minute, 1, now)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, _, err := l.Allow(context.Background(), "k", 5, 10, time.Minute, 1, now)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiterAllowRejectsOversizedKey(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	_, _, err = l.Allow(context.Background(), "", 5, 10, time.Minute, 1, time.Unix(0, 0))
	assert.Error(t, err)

	_, _, err = l.Allow(context.Background(), strings.Repeat("k", maxKeyLen+1), 5, 10, time.Minute, 1, time.Unix(0, 0))
	assert.Error(t, err)
}

func TestLimiterWithArenaStoreOverflows(t *testing.T) {
	l, err := New(WithArenaStore(1))
	require.NoError(t, err)
	defer l.Close()

	now := time.Unix(0, 0)
	_, _, err = l.Allow(context.Background(), "a", 5, 10, time.Minute, 1, now)
	require.NoError(t, err)

	// A second, distinct key has nowhere to go once the arena is full; the
	// engine retries the refused insert up to its attempt bound and then
	// reports gcra.ErrStoreContention.
	allowed, _, err := l.Allow(context.Background(), "b", 5, 10, time.Minute, 1, now)
	require.ErrorIs(t, err, gcra.ErrStoreContention)
	assert.False(t, allowed)
}

func TestLimiterLenTracksLiveKeys(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	now := time.Unix(0, 0)
	_, _, err = l.Allow(context.Background(), "a", 5, 10, time.Minute, 1, now)
	require.NoError(t, err)
	_, _, err = l.Allow(context.Background(), "b", 5, 10, time.Minute, 1, now)
	require.NoError(t, err)

	assert.Equal(t, 2, l.Len())
}

func TestWithCapacityHintRejectsNegative(t *testing.T) {
	_, err := New(WithCapacityHint(-1))
	assert.Error(t, err)
}

func TestWithInboxSizeRejectsNonPositive(t *testing.T) {
	_, err := New(WithInboxSize(0))
	assert.Error(t, err)
}

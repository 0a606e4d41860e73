package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLimiterPerWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewKeyedLimiter(PerWindow(3, 15*time.Minute))
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "otp:checkout:1")
		require.NoError(t, err)
		assert.True(t, ok, "event %d", i)
	}

	ok, err := l.Allow(ctx, "otp:checkout:1")
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys have their own bucket
	ok, err = l.Allow(ctx, "otp:checkout:2")
	require.NoError(t, err)
	assert.True(t, ok)

	// one token refills after window/limit
	now = now.Add(5 * time.Minute)
	ok, err = l.Allow(ctx, "otp:checkout:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeyedLimiterDropsIdleKeys(t *testing.T) {
	now := time.Now()
	l := NewKeyedLimiter(Config{Rate: 1, Burst: 1, ExpiresIn: time.Minute})
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := l.Allow(ctx, "a")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = l.Allow(ctx, "b")
	require.NoError(t, err)

	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "b")
}

func TestKeyedLimiterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewKeyedLimiter(PerWindow(1, time.Second)).Allow(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

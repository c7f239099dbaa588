package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAllowsBurstThenBlocks(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(5, 10*time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := m.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d", i+1)
	}
	d, err := m.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(2*time.Minute), float64(d.RetryAfter), float64(time.Second))

	other, _ := m.Allow(ctx, "10.0.0.2")
	assert.True(t, other.Allowed, "keys must be independent")

	now = now.Add(2*time.Minute + time.Second)
	d, _ = m.Allow(ctx, "10.0.0.1")
	assert.True(t, d.Allowed, "one token refills after window/limit")
}

func TestMemoryPrunesIdleBuckets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(1, time.Minute)
	m.now = func() time.Time { return now }

	_, _ = m.Allow(context.Background(), "a")
	now = now.Add(5 * time.Minute)
	_, _ = m.Allow(context.Background(), "b")

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets["a"]
	assert.False(t, ok)
	assert.Len(t, m.buckets, 1)
}

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewRedis(client, limit, window, "test"), mr
}

func TestRedisFixedWindow(t *testing.T) {
	l, mr := newRedisLimiter(t, 5, 10*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}
	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.True(t, mr.Exists("test:10.0.0.1"))

	mr.FastForward(10*time.Minute + time.Second)
	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window after expiry")
}

func TestRedisPrefixTrailingColon(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedis(client, 5, time.Minute, "roledash:register:")
	_, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("roledash:register:10.0.0.1"))
	assert.False(t, mr.Exists("roledash:register::10.0.0.1"))
}

func TestRedisFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	l := NewRedis(client, 1, time.Minute, "test")
	d, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

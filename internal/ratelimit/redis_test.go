package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, quotas ...Quota) (*RedisLimiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	clock := newFakeClock()
	limiter := NewRedisLimiter(client, quotas, "test:ratelimit")
	limiter.now = clock.Now
	return limiter, mr, clock
}

func TestRedisLimiter_Allow_ExceedsLimit(t *testing.T) {
	limiter, _, clock := newTestRedisLimiter(t, Quota{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow(ctx, "192.168.1.1")
		require.True(t, allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := limiter.Allow(ctx, "192.168.1.1")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, time.Minute, info.RetryAfter)
	assert.Equal(t, clock.Now().Add(time.Minute).UnixMilli(), info.ResetAt.UnixMilli())
}

func TestRedisLimiter_Allow_WindowElapses(t *testing.T) {
	limiter, _, clock := newTestRedisLimiter(t, Quota{Limit: 2, Window: time.Minute})
	ctx := context.Background()

	limiter.Allow(ctx, "client")
	limiter.Allow(ctx, "client")
	allowed, _ := limiter.Allow(ctx, "client")
	require.False(t, allowed)

	clock.Advance(time.Minute)
	allowed, _ = limiter.Allow(ctx, "client")
	assert.True(t, allowed)
}

func TestRedisLimiter_Allow_MultipleQuotas(t *testing.T) {
	limiter, _, clock := newTestRedisLimiter(t,
		Quota{Limit: 3, Window: time.Hour},
		Quota{Limit: 2, Window: time.Minute},
	)
	ctx := context.Background()

	limiter.Allow(ctx, "client")
	limiter.Allow(ctx, "client")
	allowed, _ := limiter.Allow(ctx, "client")
	require.False(t, allowed, "minute quota should deny")

	clock.Advance(time.Minute)
	allowed, info := limiter.Allow(ctx, "client")
	require.True(t, allowed)
	assert.Equal(t, 3, info.Limit, "hourly quota binds after three admissions")
	assert.Equal(t, 0, info.Remaining)

	clock.Advance(time.Minute)
	allowed, info = limiter.Allow(ctx, "client")
	assert.False(t, allowed, "hourly quota should deny")
	assert.Equal(t, time.Hour-2*time.Minute, info.RetryAfter)
}

func TestRedisLimiter_Allow_DifferentKeys(t *testing.T) {
	limiter, mr, _ := newTestRedisLimiter(t, Quota{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "key1")
	require.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "key1")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "key2")
	assert.True(t, allowed)

	assert.True(t, mr.Exists("test:ratelimit:{key1}:0:60000"))
	assert.True(t, mr.Exists("test:ratelimit:{key2}:0:60000"))
}

func TestRedisLimiter_Allow_FailsOpen(t *testing.T) {
	limiter, mr, _ := newTestRedisLimiter(t, Quota{Limit: 1, Window: time.Minute})
	mr.Close()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow(context.Background(), "client")
		assert.True(t, allowed)
		assert.Equal(t, 1, info.Limit)
	}
}

func TestRedisLimiter_ImplementsLimiter(t *testing.T) {
	var _ Limiter = (*RedisLimiter)(nil)
	var _ Limiter = (*MemoryLimiter)(nil)
}

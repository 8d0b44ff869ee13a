package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	t.Run("LimitWithinWindow", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			allowed, err := limiter.CheckRateLimit(ctx, "alice", 2, time.Second)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := limiter.CheckRateLimit(ctx, "alice", 2, time.Second)
		require.NoError(t, err)
		assert.False(t, allowed)

		ttl := s.TTL(rateLimitPrefix + "alice")
		assert.Equal(t, time.Second, ttl, "window is not extended by later attempts")
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		allowed, err := limiter.CheckRateLimit(ctx, "bob", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("WindowExpires", func(t *testing.T) {
		s.FastForward(2 * time.Second)

		allowed, err := limiter.CheckRateLimit(ctx, "alice", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisRateLimiter_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRedisRateLimiter(nil).CheckRateLimit(ctx, "alice", 1, time.Second)
	assert.EqualError(t, err, "redis client is nil")

	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	s.Close()

	_, err = NewRedisRateLimiter(client).CheckRateLimit(ctx, "alice", 1, time.Second)
	assert.Error(t, err)
	assert.Error(t, Ping(ctx, client))
	assert.NoError(t, Close(client))
	assert.NoError(t, Close(nil))
}

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter(t *testing.T) {
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	limiter := NewMemoryRateLimiter()
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.CheckRateLimit(ctx, "alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := limiter.CheckRateLimit(ctx, "alice", 3, time.Minute)
	assert.False(t, allowed)

	now = now.Add(time.Minute)
	allowed, _ = limiter.CheckRateLimit(ctx, "alice", 3, time.Minute)
	assert.True(t, allowed, "a new window starts once the old one expires")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, limiter.Sweep())
	assert.Zero(t, limiter.Sweep())
}

func TestMemoryRateLimiter_Concurrent(t *testing.T) {
	limiter := NewMemoryRateLimiter()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _ := limiter.CheckRateLimit(ctx, "shared", 10, time.Minute)
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowedCount)
}

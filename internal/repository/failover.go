package repository

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverRateLimiter uses primary until it fails, then serves from fallback
// and retries primary once per recoveryInterval.
type FailoverRateLimiter struct {
	primary  RateLimiter
	fallback RateLimiter
	logger   *zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
}

func NewFailoverRateLimiter(primary, fallback RateLimiter, logger *zerolog.Logger) *FailoverRateLimiter {
	return &FailoverRateLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverRateLimiter) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.isDown || r.now().Sub(r.lastCheck) > recoveryInterval
}

func (r *FailoverRateLimiter) markDown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isDown = true
	r.lastCheck = r.now()
}

func (r *FailoverRateLimiter) markUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isDown {
		r.logger.Info().Msg("primary rate limiter recovered")
	}
	r.isDown = false
}

// Degraded reports whether calls are currently served by the fallback.
func (r *FailoverRateLimiter) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDown
}

func (r *FailoverRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary rate limiter failed, falling back to memory")
		r.markDown()
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

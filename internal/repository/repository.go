// Package repository holds the per-user booking-attempt counters. Redis is the
// primary store; an in-memory copy takes over while Redis is unreachable.
package repository

import (
	"context"
	"time"
)

// RateLimiter counts attempts per key inside a fixed window.
type RateLimiter interface {
	// CheckRateLimit records one attempt and reports whether it is within limit.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

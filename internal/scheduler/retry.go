package scheduler

import (
	"math"
	"time"
)

// RetryPolicy spaces out retries of a failed tick.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy never retries: a failed tick waits for the next midnight.
// Set MaxRetries to retry sooner.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    0,
		InitialDelay:  30 * time.Second,
		MaxDelay:      15 * time.Minute,
		BackoffFactor: 2,
	}
}

// NextDelay returns the delay before retry attempt (1-based), clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	d := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

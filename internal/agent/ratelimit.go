package agent

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiter paces model provider calls with a token bucket: a burst
// allowance refilled at a steady per-minute rate.
type RateLimiter struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	perSec float64
	last   time.Time
}

// NewRateLimiter sizes the bucket. Non-positive arguments fall back to a
// burst of 10 and 30 calls per minute.
func NewRateLimiter(burst int, perMinute float64) *RateLimiter {
	if burst <= 0 {
		burst = 10
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{
		tokens: float64(burst),
		burst:  float64(burst),
		perSec: perMinute / 60.0,
		last:   time.Now(),
	}
}

// Wait takes one token, sleeping through the refill when the bucket is
// empty. It returns early with the context's error on cancellation.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		rl.tokens = math.Min(rl.burst, rl.tokens+now.Sub(rl.last).Seconds()*rl.perSec)
		rl.last = now
		if rl.tokens >= 1.0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1.0 - rl.tokens) / rl.perSec * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

package runner

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/provbench/internal/provider"
)

// RateLimiter is a token bucket shared by every unit of one provider. The
// bucket starts full and refills continuously at capacity per window.
// Acquire never rejects; it only waits.
type RateLimiter struct {
	limiter  *rate.Limiter
	capacity int
	window   time.Duration
}

// NewRateLimiter returns a limiter allowing capacity acquisitions per window.
// A non-positive capacity means unlimited.
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	if capacity <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if window <= 0 {
		window = time.Second
	}
	perSecond := float64(capacity) / window.Seconds()
	return &RateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), capacity),
		capacity: capacity,
		window:   window,
	}
}

// Acquire blocks until a token is available and consumes it. It returns
// only the context's error.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Unlimited reports whether the limiter never waits.
func (l *RateLimiter) Unlimited() bool {
	return l == nil || l.capacity <= 0
}

// Rate returns the refill rate in tokens per second, +Inf when unlimited.
func (l *RateLimiter) Rate() float64 {
	if l.Unlimited() {
		return math.Inf(1)
	}
	return float64(l.limiter.Limit())
}

func (l *RateLimiter) Capacity() int {
	if l == nil {
		return 0
	}
	return l.capacity
}

func (l *RateLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.window
}

// LimiterFactory builds the limiter for one provider handle.
type LimiterFactory func(h provider.Handle) *RateLimiter

func defaultLimiterFactory(h provider.Handle) *RateLimiter {
	return NewRateLimiter(h.RateLimit, h.RateWindow)
}

package platform

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter governs one adapter's outbound request pace: a per-minute
// token bucket plus a uniform-random minimum spacing between consecutive
// requests, per spec.md's "per-minute counter reset" and "per-request
// minimum spacing" rate-limit governance.
type RateLimiter struct {
	bucket   *rate.Limiter
	minDelay time.Duration
	maxDelay time.Duration
	lastReq  time.Time
}

// NewRateLimiter constructs a limiter allowing perMinute requests/minute,
// with a uniform-random delay in [minDelay, maxDelay] enforced between
// consecutive requests.
func NewRateLimiter(perMinute int, minDelay, maxDelay time.Duration) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	// rate.Limit is in events/second; a burst of perMinute lets the first
	// minute's worth of allowance through immediately, then refills.
	limit := rate.Limit(float64(perMinute) / 60.0)
	return &RateLimiter{
		bucket:   rate.NewLimiter(limit, perMinute),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Wait blocks until both the per-minute bucket and the minimum inter-request
// spacing allow the next call through.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	if !r.lastReq.IsZero() && r.maxDelay > 0 {
		spacing := r.minDelay
		if r.maxDelay > r.minDelay {
			spacing += time.Duration(rand.Int64N(int64(r.maxDelay - r.minDelay)))
		}
		elapsed := time.Since(r.lastReq)
		if elapsed < spacing {
			timer := time.NewTimer(spacing - elapsed)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	r.lastReq = time.Now()
	return nil
}

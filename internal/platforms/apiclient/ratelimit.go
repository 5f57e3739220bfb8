package apiclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// RateLimitConfig holds rate limiting configuration for a platform.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimits are per-app outbound limits, well below each platform's quota.
var DefaultRateLimits = map[domain.Platform]RateLimitConfig{
	domain.PlatformFacebook:  {RequestsPerSecond: 5, BurstSize: 10},
	domain.PlatformInstagram: {RequestsPerSecond: 3, BurstSize: 6},
	domain.PlatformLinkedIn:  {RequestsPerSecond: 2, BurstSize: 5},
	domain.PlatformTwitter:   {RequestsPerSecond: 1, BurstSize: 3},
	domain.PlatformYouTube:   {RequestsPerSecond: 2, BurstSize: 5},
	domain.PlatformWordPress: {RequestsPerSecond: 5, BurstSize: 10},
	domain.PlatformGoogle:    {RequestsPerSecond: 5, BurstSize: 10},
}

// RateLimiter is a token bucket with a backoff window set after 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter using the platform's default limits.
func NewRateLimiter(platform domain.Platform) *RateLimiter {
	cfg, ok := DefaultRateLimits[platform]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 5, BurstSize: 10}
	}
	return NewRateLimiterWithConfig(cfg)
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request may be made, honouring any backoff window.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if delay := time.Until(retryAt); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError opens a backoff window after a 429 response.
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = 30 * time.Second
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if at := time.Now().Add(retryAfter); at.After(r.retryAt) {
		r.retryAt = at
	}
}

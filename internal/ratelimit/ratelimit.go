// Package ratelimit throttles outbound document fetches.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter spaces out fetches to at most a fixed number per second.
type Limiter struct {
	limiter *rate.Limiter
}

// New uses 0 or negative limit for no rate limiting.
func New(fetchesPerSecond float64) *Limiter {
	if fetchesPerSecond <= 0 {
		return &Limiter{
			limiter: rate.NewLimiter(rate.Inf, 1),
		}
	}

	// burst of one: the first fetch is immediate, later ones wait
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(fetchesPerSecond), 1),
	}
}

// Wait blocks until a fetch may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Limit returns the configured rate, 0 when unlimited.
func (l *Limiter) Limit() float64 {
	limit := l.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return float64(limit)
}

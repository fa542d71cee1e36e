package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between operations.
// The first Wait returns immediately; every later Wait blocks until
// interval has passed since the previous one was allowed through,
// or since the last Done when the caller reports completion.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	limit    rate.Limit
	name     string
	interval time.Duration
}

// New creates a limiter allowing one operation per interval, with no burst.
// A zero interval never blocks.
func New(name string, interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limit, 1),
		limit:    limit,
		name:     name,
		interval: interval,
	}
}

// Wait blocks until the next operation may proceed.
// Returns an error if the context is cancelled first.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Done restarts the interval at the current time: the next Wait blocks
// for a full interval after the operation finished, however long it ran.
func (l *Limiter) Done() {
	limiter := rate.NewLimiter(l.limit, 1)
	limiter.Allow()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = limiter
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}

// Interval returns the enforced minimum interval
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces outbound requests to a storefront.
type Limiter interface {
	Wait(ctx context.Context) error
}

// JitteredLimiter enforces a randomized delay between requests so a scrape
// run does not hit a storefront on a fixed cadence.
type JitteredLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	last     time.Time
}

func NewJitteredLimiter(minDelay, maxDelay time.Duration) *JitteredLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitteredLimiter{minDelay: minDelay, maxDelay: maxDelay}
}

func (l *JitteredLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delay := l.delay()
	if elapsed := time.Since(l.last); elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.last = time.Now()
	return nil
}

func (l *JitteredLimiter) delay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	return l.minDelay + time.Duration(rand.Int63n(int64(l.maxDelay-l.minDelay)))
}

// AdaptiveLimiter wraps JitteredLimiter and widens the delay window after
// repeated failures, narrowing it again once requests succeed. Scrape loops
// feed it per-item outcomes.
type AdaptiveLimiter struct {
	*JitteredLimiter
	errorStreak   int
	successStreak int
}

const (
	backoffAfter    = 3
	backoffFactor   = 1.5
	recoverAfter    = 5
	minFloor        = 500 * time.Millisecond
	maxDelayCeiling = 60 * time.Second
)

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{JitteredLimiter: NewJitteredLimiter(minDelay, maxDelay)}
}

// RecordSuccess narrows the delay window after a run of successes.
func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successStreak++
	a.errorStreak = 0

	if a.successStreak >= recoverAfter {
		a.successStreak = 0
		if next := time.Duration(float64(a.minDelay) * 0.9); next >= minFloor {
			a.minDelay = next
		}
	}
}

// RecordError widens the delay window after a streak of failures.
func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorStreak++
	a.successStreak = 0

	if a.errorStreak >= backoffAfter {
		a.errorStreak = 0
		a.minDelay = time.Duration(float64(a.minDelay) * backoffFactor)
		a.maxDelay = time.Duration(float64(a.maxDelay) * backoffFactor)
		if a.maxDelay > maxDelayCeiling {
			a.maxDelay = maxDelayCeiling
		}
		if a.minDelay > a.maxDelay {
			a.minDelay = a.maxDelay
		}
	}
}

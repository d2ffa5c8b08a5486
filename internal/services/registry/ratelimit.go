package registry

import (
	"sync"
	"time"

	"github.com/mcoot/paddleduel/internal/dependencies/clock"
	"github.com/mcoot/paddleduel/internal/model"
)

// RateLimiter is a sliding-window limiter keyed by connection
type RateLimiter struct {
	clock       clock.Clock
	maxAttempts int
	window      time.Duration

	mu       sync.Mutex
	attempts map[model.ConnectionID][]time.Time
}

// NewRateLimiter allows maxAttempts per window for each connection
func NewRateLimiter(clk clock.Clock, maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:       clk,
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[model.ConnectionID][]time.Time),
	}
}

// Allow records an attempt and reports whether it is within the limit.
// Rejected attempts are not recorded.
func (r *RateLimiter) Allow(connID model.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	cutoff := now.Add(-r.window)

	recent := r.attempts[connID][:0]
	for _, ts := range r.attempts[connID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= r.maxAttempts {
		r.attempts[connID] = recent
		return false
	}

	r.attempts[connID] = append(recent, now)
	return true
}

// Forget drops all state for a connection
func (r *RateLimiter) Forget(connID model.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, connID)
}

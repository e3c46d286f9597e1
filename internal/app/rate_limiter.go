package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter is a sliding window limiter keyed by client token.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(clock clockwork.Clock, limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

// Allow records an attempt for key and reports whether it fits the window.
// A limit of zero or less disables limiting.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}

// Prune forgets keys with no attempt inside the window.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	windowStart := rl.clock.Now().Add(-rl.interval)
	n := 0
	for key, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, key)
			n++
		}
	}
	return n
}

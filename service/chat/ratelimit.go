package chat

import (
	"sync"
	"time"
)

// Sliding-window policy: at most RateLimitMax accepted sends in the trailing
// RateLimitWindow. Timestamps are pruned on every check, so this is a true
// rolling rate, not a bucket that resets on a schedule.
const (
	RateLimitWindow = 60 * time.Second
	RateLimitMax    = 30
)

// RateLimiter tracks per-user send timestamps. Windows are created lazily on
// first send and dropped when the user disconnects (Forget).
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	clock   func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithClock(time.Now)
}

// NewRateLimiterWithClock injects a clock for tests.
func NewRateLimiterWithClock(clock func() time.Time) *RateLimiter {
	return &RateLimiter{windows: make(map[string][]time.Time), clock: clock}
}

// Check reports whether userID may send now. Allowing has the side effect of
// recording the current timestamp; rejection records nothing.
func (rl *RateLimiter) Check(userID string) bool {
	now := rl.clock()
	cutoff := now.Add(-RateLimitWindow)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.windows[userID]
	pruned := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	if len(pruned) >= RateLimitMax {
		rl.windows[userID] = pruned
		return false
	}
	rl.windows[userID] = append(pruned, now)
	return true
}

// Forget drops a user's window; called on disconnect.
func (rl *RateLimiter) Forget(userID string) {
	rl.mu.Lock()
	delete(rl.windows, userID)
	rl.mu.Unlock()
}

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiterWithClock(func() time.Time { return now })

	for i := 0; i < RateLimitMax; i++ {
		assert.True(t, rl.Check("u1"), "send %d should be allowed", i+1)
	}
	assert.False(t, rl.Check("u1"), "31st send inside the window must be rejected")

	// after the window passes with no sends, a new send is accepted
	now = now.Add(61 * time.Second)
	assert.True(t, rl.Check("u1"))
}

func TestRateLimitIsRolling(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiterWithClock(func() time.Time { return now })

	for i := 0; i < RateLimitMax; i++ {
		assert.True(t, rl.Check("u1"))
	}

	// half a window later the original timestamps still count
	now = now.Add(30 * time.Second)
	assert.False(t, rl.Check("u1"))

	// once they age past 60s the window frees up
	now = now.Add(31 * time.Second)
	assert.True(t, rl.Check("u1"))
}

func TestRejectionRecordsNothing(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiterWithClock(func() time.Time { return now })

	for i := 0; i < RateLimitMax; i++ {
		rl.Check("u1")
	}
	for i := 0; i < 10; i++ {
		assert.False(t, rl.Check("u1"))
	}

	// rejected attempts must not extend the window
	now = now.Add(61 * time.Second)
	assert.True(t, rl.Check("u1"))
}

func TestWindowsAreIndependentPerUser(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiterWithClock(func() time.Time { return now })

	for i := 0; i < RateLimitMax; i++ {
		rl.Check("u1")
	}
	assert.False(t, rl.Check("u1"))
	assert.True(t, rl.Check("u2"))
}

func TestForgetDropsWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiterWithClock(func() time.Time { return now })

	for i := 0; i < RateLimitMax; i++ {
		rl.Check("u1")
	}
	assert.False(t, rl.Check("u1"))

	rl.Forget("u1")
	assert.True(t, rl.Check("u1"))
}

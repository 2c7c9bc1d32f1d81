package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		req.True(rl.allow(), "event %d within burst should pass", i)
	}
	req.False(rl.allow(), "burst exhausted")
}

func TestRateLimiterRefills(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(100, 100*time.Millisecond)

	for i := 0; i < 100; i++ {
		rl.allow()
	}
	req.False(rl.allow())

	time.Sleep(50 * time.Millisecond)
	req.True(rl.allow(), "tokens should refill over time")
}

func TestRateLimiterZeroConfig(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(0, 0)

	req.True(rl.allow())
}

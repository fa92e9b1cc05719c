package infra

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket holding up to burst tokens, one of which
// is restored every interval. The outbound feed and LLM callers share one
// per upstream so a fan-out cannot hammer a single host.
type RateLimiter struct {
	mu       sync.Mutex
	burst    int
	interval time.Duration
	tokens   int
	last     time.Time
	now      func() time.Time
}

// NewRateLimiter returns a full bucket of burst tokens. A non-positive
// interval disables limiting.
func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	burst = max(burst, 1)
	return &RateLimiter{
		burst:    burst,
		interval: interval,
		tokens:   burst,
		last:     time.Now(),
		now:      time.Now,
	}
}

// Allow takes a token if one is available without waiting.
func (rl *RateLimiter) Allow() bool {
	ok, _ := rl.take()
	return ok
}

// Wait takes a token, sleeping until the next one is restored when the
// bucket is empty. It returns ctx.Err() if ctx ends first.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait := rl.take()
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// take reports whether a token was consumed and, if not, how long until
// the next one is due.
func (rl *RateLimiter) take() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.interval <= 0 {
		return true, 0
	}
	now := rl.now()
	if n := int(now.Sub(rl.last) / rl.interval); n > 0 {
		rl.tokens = min(rl.burst, rl.tokens+n)
		rl.last = rl.last.Add(time.Duration(n) * rl.interval)
	}
	if rl.tokens == rl.burst {
		rl.last = now
	}
	if rl.tokens > 0 {
		rl.tokens--
		return true, 0
	}
	return false, rl.interval - now.Sub(rl.last)
}

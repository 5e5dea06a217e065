package ai

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum gap between upstream calls. The free Gemini
// tier allows about one request per minute, so callers Wait before each
// request and Record after it.
//
// The clock and sleeper are injectable so tests run without real waiting.
type Limiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLimiter(cooldown time.Duration) *Limiter {
	return &Limiter{
		cooldown: cooldown,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the cooldown since the last recorded call has elapsed,
// or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	var remaining time.Duration
	if !l.last.IsZero() {
		remaining = l.cooldown - l.now().Sub(l.last)
	}
	l.mu.Unlock()

	if remaining <= 0 {
		return nil
	}
	return l.sleep(ctx, remaining)
}

// Record marks now as the last call time. Called after every upstream
// request, successful or not, since failed requests still count against the
// quota.
func (l *Limiter) Record() {
	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
}

package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock drives a Limiter without real waiting. Sleeps advance the clock
// and are recorded.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func newFakeLimiter(cooldown time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)}
	l := NewLimiter(cooldown)
	l.now = func() time.Time { return clock.current }
	l.sleep = func(ctx context.Context, d time.Duration) error {
		clock.slept = append(clock.slept, d)
		clock.current = clock.current.Add(d)
		return nil
	}
	return l, clock
}

func TestLimiterFirstCallImmediate(t *testing.T) {
	l, clock := newFakeLimiter(time.Minute)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("first call should not sleep, slept %v", clock.slept)
	}
}

func TestLimiterEnforcesCooldown(t *testing.T) {
	l, clock := newFakeLimiter(time.Minute)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Record()

	clock.current = clock.current.Add(10 * time.Second)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clock.slept) != 1 || clock.slept[0] != 50*time.Second {
		t.Errorf("slept %v, want one 50s sleep", clock.slept)
	}
}

func TestLimiterNoWaitAfterCooldown(t *testing.T) {
	l, clock := newFakeLimiter(time.Minute)
	l.Record()

	clock.current = clock.current.Add(2 * time.Minute)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("cooldown elapsed, should not sleep, slept %v", clock.slept)
	}
}

func TestLimiterCancelledContext(t *testing.T) {
	l, _ := newFakeLimiter(time.Minute)
	l.sleep = sleepContext
	l.Record()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestLimiterRecordResetsWindow(t *testing.T) {
	l, clock := newFakeLimiter(time.Minute)
	l.Record()
	clock.current = clock.current.Add(30 * time.Second)
	l.Record()

	clock.current = clock.current.Add(30 * time.Second)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 30s since the second Record, so 30s left on the window.
	if len(clock.slept) != 1 || clock.slept[0] != 30*time.Second {
		t.Errorf("slept %v, want one 30s sleep", clock.slept)
	}
}

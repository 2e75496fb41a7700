package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/queueworks/governor/ratelimit"
)

// fixedClock is a manually advanced clock shared by limiter tests.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fixedClock {
	// Aligned to a window boundary so weighted counts are predictable.
	return &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryExactlyOneDenial(t *testing.T) {
	clock := newClock()
	lim := ratelimit.NewMemory(ratelimit.WithMemoryClock(clock.now))
	ctx := context.Background()

	const limit = 5
	window := time.Second

	denials := 0
	for range limit + 1 {
		d, err := lim.TryAcquire(ctx, "mailgun", limit, window)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if !d.Allowed {
			denials++
		}
	}
	if denials != 1 {
		t.Errorf("expected exactly one denial for limit+1 rapid calls, got %d", denials)
	}
}

func TestMemoryWindowReset(t *testing.T) {
	clock := newClock()
	lim := ratelimit.NewMemory(ratelimit.WithMemoryClock(clock.now))
	ctx := context.Background()

	const limit = 5
	window := time.Second

	for range limit {
		if d, _ := lim.TryAcquire(ctx, "mailgun", limit, window); !d.Allowed {
			t.Fatal("budget should not be exhausted yet")
		}
	}
	if d, _ := lim.TryAcquire(ctx, "mailgun", limit, window); d.Allowed {
		t.Fatal("expected denial at the limit")
	}

	// After both windows fully elapse the budget is whole again.
	clock.advance(2 * window)
	d, err := lim.TryAcquire(ctx, "mailgun", limit, window)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !d.Allowed {
		t.Error("expected admission after the window elapsed")
	}
}

func TestMemorySlidingWindowNoDoubleBurst(t *testing.T) {
	clock := newClock()
	lim := ratelimit.NewMemory(ratelimit.WithMemoryClock(clock.now))
	ctx := context.Background()

	const limit = 10
	window := time.Second

	// Exhaust the budget at the very end of the first window.
	clock.advance(900 * time.Millisecond)
	for range limit {
		lim.TryAcquire(ctx, "api", limit, window)
	}

	// Just past the boundary a fixed-bucket limiter would grant a fresh
	// burst of `limit`; the sliding window must not.
	clock.advance(200 * time.Millisecond)
	granted := 0
	for range limit {
		if d, _ := lim.TryAcquire(ctx, "api", limit, window); d.Allowed {
			granted++
		}
	}
	if granted >= limit {
		t.Errorf("double burst at window edge: granted %d of %d", granted, limit)
	}
}

func TestMemoryDecisionFields(t *testing.T) {
	clock := newClock()
	lim := ratelimit.NewMemory(ratelimit.WithMemoryClock(clock.now))
	ctx := context.Background()

	window := time.Minute
	d, err := lim.TryAcquire(ctx, "api", 3, window)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !d.Allowed {
		t.Fatal("first call must be allowed")
	}
	if d.Remaining != 2 {
		t.Errorf("expected 2 remaining, got %d", d.Remaining)
	}
	wantReset := clock.now().Truncate(window).Add(window)
	if !d.ResetAt.Equal(wantReset) {
		t.Errorf("expected reset at %v, got %v", wantReset, d.ResetAt)
	}
}

func TestMemoryKeysIndependent(t *testing.T) {
	clock := newClock()
	lim := ratelimit.NewMemory(ratelimit.WithMemoryClock(clock.now))
	ctx := context.Background()

	for range 3 {
		lim.TryAcquire(ctx, "hot", 3, time.Second)
	}
	if d, _ := lim.TryAcquire(ctx, "hot", 3, time.Second); d.Allowed {
		t.Error("hot key should be exhausted")
	}
	if d, _ := lim.TryAcquire(ctx, "cold", 3, time.Second); !d.Allowed {
		t.Error("cold key should be unaffected")
	}
}

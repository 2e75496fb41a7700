package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/queueworks/governor/ratelimit"
)

func setupRedisLimiter(t *testing.T) (*ratelimit.Redis, *fixedClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := newClock()
	return ratelimit.NewRedis(client, ratelimit.WithClock(clock.now)), clock
}

func TestRedisExactlyOneDenial(t *testing.T) {
	lim, _ := setupRedisLimiter(t)
	ctx := context.Background()

	const limit = 5
	denials := 0
	for range limit + 1 {
		d, err := lim.TryAcquire(ctx, "mailgun", limit, time.Second)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if !d.Allowed {
			denials++
		}
	}
	if denials != 1 {
		t.Errorf("expected exactly one denial, got %d", denials)
	}
}

func TestRedisWindowReset(t *testing.T) {
	lim, clock := setupRedisLimiter(t)
	ctx := context.Background()

	const limit = 3
	window := time.Second
	for range limit {
		if d, _ := lim.TryAcquire(ctx, "api", limit, window); !d.Allowed {
			t.Fatal("budget exhausted early")
		}
	}
	if d, _ := lim.TryAcquire(ctx, "api", limit, window); d.Allowed {
		t.Fatal("expected denial at the limit")
	}

	clock.advance(2 * window)
	d, err := lim.TryAcquire(ctx, "api", limit, window)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !d.Allowed {
		t.Error("expected admission after the window elapsed")
	}
}

func TestRedisSharedBudgetAcrossClients(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := newClock()

	// Two limiter instances on separate connections share one budget,
	// as two worker hosts would.
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { clientA.Close(); clientB.Close() })

	limA := ratelimit.NewRedis(clientA, ratelimit.WithClock(clock.now))
	limB := ratelimit.NewRedis(clientB, ratelimit.WithClock(clock.now))

	ctx := context.Background()
	const limit = 4

	for range limit / 2 {
		if d, _ := limA.TryAcquire(ctx, "shared", limit, time.Second); !d.Allowed {
			t.Fatal("host A denied early")
		}
		if d, _ := limB.TryAcquire(ctx, "shared", limit, time.Second); !d.Allowed {
			t.Fatal("host B denied early")
		}
	}

	if d, _ := limA.TryAcquire(ctx, "shared", limit, time.Second); d.Allowed {
		t.Error("budget should be spent across both hosts")
	}
}

func TestRedisDecisionFields(t *testing.T) {
	lim, clock := setupRedisLimiter(t)
	ctx := context.Background()

	window := time.Minute
	d, err := lim.TryAcquire(ctx, "api", 3, window)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("unexpected decision: %+v", d)
	}
	wantReset := clock.now().Truncate(window).Add(window)
	if !d.ResetAt.Equal(wantReset) {
		t.Errorf("expected reset at %v, got %v", wantReset, d.ResetAt)
	}
}

package queue_test

import (
	"testing"
	"time"

	"github.com/queueworks/governor/queue"
)

func TestRegistryGet(t *testing.T) {
	r := queue.NewRegistry(
		queue.Config{Name: "email", Tier: queue.TierHigh, MinWorkers: 1, MaxWorkers: 8},
	)

	cfg, ok := r.Get("email")
	if !ok {
		t.Fatal("expected email queue to be registered")
	}
	if cfg.Tier != queue.TierHigh {
		t.Errorf("expected tier %v, got %v", queue.TierHigh, cfg.Tier)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing queue to be absent")
	}
}

func TestNamesTierOrder(t *testing.T) {
	r := queue.NewRegistry(
		queue.Config{Name: "bulk", Tier: queue.TierBackground, MaxWorkers: 2},
		queue.Config{Name: "payments", Tier: queue.TierCritical, MaxWorkers: 4},
		queue.Config{Name: "email", Tier: queue.TierHigh, MaxWorkers: 4},
		queue.Config{Name: "assets", Tier: queue.TierHigh, MaxWorkers: 4},
	)

	want := []string{"payments", "assets", "email", "bulk"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestByTierSkipsDisabled(t *testing.T) {
	r := queue.NewRegistry(
		queue.Config{Name: "email", Tier: queue.TierHigh, MaxWorkers: 4},
		queue.Config{Name: "paused", Tier: queue.TierHigh, MaxWorkers: 4, Disabled: true},
	)

	byTier := r.ByTier()
	high := byTier[queue.TierHigh]
	if len(high) != 1 || high[0] != "email" {
		t.Errorf("expected only email in high tier, got %v", high)
	}
}

func TestSetDesiredClamps(t *testing.T) {
	r := queue.NewRegistry(
		queue.Config{Name: "email", MinWorkers: 2, MaxWorkers: 10},
	)

	if got := r.SetDesired("email", 50); got != 10 {
		t.Errorf("expected clamp to 10, got %d", got)
	}
	if got := r.SetDesired("email", 0); got != 2 {
		t.Errorf("expected clamp to 2, got %d", got)
	}
	if got := r.SetDesired("email", 5); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if got := r.Desired("email"); got != 5 {
		t.Errorf("Desired: expected 5, got %d", got)
	}
}

func TestSetConfigPreservesDesired(t *testing.T) {
	r := queue.NewRegistry(
		queue.Config{Name: "email", MinWorkers: 1, MaxWorkers: 10},
	)
	r.SetDesired("email", 8)

	// Shrinking the bounds re-clamps the surviving desired count.
	r.SetConfig(queue.Config{Name: "email", MinWorkers: 1, MaxWorkers: 4})
	if got := r.Desired("email"); got != 4 {
		t.Errorf("expected desired re-clamped to 4, got %d", got)
	}
}

func TestAllowDispatchThrottle(t *testing.T) {
	r := queue.NewRegistry(
		queue.Config{Name: "slow", MaxWorkers: 2, DispatchRate: 1, DispatchBurst: 1},
		queue.Config{Name: "fast", MaxWorkers: 2},
	)

	if !r.AllowDispatch("slow") {
		t.Error("first dispatch should pass the throttle")
	}
	if r.AllowDispatch("slow") {
		t.Error("second immediate dispatch should be throttled")
	}
	// Unthrottled queues always allow.
	for range 10 {
		if !r.AllowDispatch("fast") {
			t.Fatal("unthrottled queue denied dispatch")
		}
	}
}

func TestGlobalCap(t *testing.T) {
	r := queue.NewRegistry(
		queue.Config{Name: "a", MaxWorkers: 4},
		queue.Config{Name: "b", MaxWorkers: 6},
		queue.Config{Name: "off", MaxWorkers: 100, Disabled: true},
	)
	if got := r.GlobalCap(); got != 10 {
		t.Errorf("expected global cap 10, got %d", got)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := queue.Config{Name: "q", MinWorkers: 1, MaxWorkers: 2}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := []queue.Config{
		{MaxWorkers: 1},
		{Name: "q", MaxWorkers: 0},
		{Name: "q", MinWorkers: 5, MaxWorkers: 2},
		{Name: "q", MaxWorkers: 2, SoftMemoryMB: 512, HardMemoryMB: 256},
		{Name: "q", MaxWorkers: 2, ResourceKey: "api", ResourceLimit: 0, ResourceWindow: time.Second},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("bad config %d accepted", i)
		}
	}
}

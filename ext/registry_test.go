package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobDispatched(_ context.Context, _ *job.Job, _ id.WorkerID) error {
	e.calls = append(e.calls, "OnJobDispatched")
	return nil
}

func (e *allHooksExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobSoftTimeout(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobSoftTimeout")
	return nil
}

func (e *allHooksExt) OnJobHardTimeout(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobHardTimeout")
	return nil
}

func (e *allHooksExt) OnWorkerStarted(_ context.Context, _ id.WorkerID, _ string) error {
	e.calls = append(e.calls, "OnWorkerStarted")
	return nil
}

func (e *allHooksExt) OnWorkerRecycled(_ context.Context, _ id.WorkerID, _, _ string) error {
	e.calls = append(e.calls, "OnWorkerRecycled")
	return nil
}

func (e *allHooksExt) OnScaleDecision(_ context.Context, _ string, _, _ int, _ string) error {
	e.calls = append(e.calls, "OnScaleDecision")
	return nil
}

func (e *allHooksExt) OnMemoryPressure(_ context.Context, _ id.WorkerID, _ string, _ memmon.Status, _ float64) error {
	e.calls = append(e.calls, "OnMemoryPressure")
	return nil
}

func (e *allHooksExt) OnAlertRaised(_ context.Context, _ *alert.Alert) error {
	e.calls = append(e.calls, "OnAlertRaised")
	return nil
}

func (e *allHooksExt) OnAlertAcknowledged(_ context.Context, _ *alert.Alert) error {
	e.calls = append(e.calls, "OnAlertAcknowledged")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// jobOnlyExt only implements job-related hooks.
type jobOnlyExt struct {
	calls []string
}

func (e *jobOnlyExt) Name() string { return "job-only" }

func (e *jobOnlyExt) OnJobDispatched(_ context.Context, _ *job.Job, _ id.WorkerID) error {
	e.calls = append(e.calls, "OnJobDispatched")
	return nil
}

func (e *jobOnlyExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobDispatched(_ context.Context, _ *job.Job, _ id.WorkerID) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	jo := &jobOnlyExt{}
	r.Register(all)
	r.Register(jo)

	ctx := context.Background()
	j := &job.Job{Name: "test-job"}

	// Both implement OnJobDispatched → both called.
	r.EmitJobDispatched(ctx, j, id.NewWorkerID())
	if len(all.calls) != 1 || all.calls[0] != "OnJobDispatched" {
		t.Fatalf("all: expected [OnJobDispatched], got %v", all.calls)
	}
	if len(jo.calls) != 1 || jo.calls[0] != "OnJobDispatched" {
		t.Fatalf("jo: expected [OnJobDispatched], got %v", jo.calls)
	}

	// Only all implements OnJobFailed → jo not called.
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	if len(all.calls) != 2 || all.calls[1] != "OnJobFailed" {
		t.Fatalf("all: expected OnJobFailed as 2nd, got %v", all.calls)
	}
	if len(jo.calls) != 1 {
		t.Fatalf("jo: should still have 1 call, got %v", jo.calls)
	}
}

func TestRegistry_AllJobHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Name: "test-job"}

	r.EmitJobDispatched(ctx, j, id.NewWorkerID())
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitJobSoftTimeout(ctx, j, 30*time.Second)
	r.EmitJobHardTimeout(ctx, j, 2*time.Minute)

	expected := []string{
		"OnJobDispatched", "OnJobCompleted", "OnJobFailed",
		"OnJobSoftTimeout", "OnJobHardTimeout",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_WorkerAndScalingHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	wid := id.NewWorkerID()

	r.EmitWorkerStarted(ctx, wid, "email")
	r.EmitWorkerRecycled(ctx, wid, "email", "job_count_exceeded")
	r.EmitScaleDecision(ctx, "email", 4, 6, "up")
	r.EmitMemoryPressure(ctx, wid, "email", memmon.ExceedsCritical, 1850)

	expected := []string{
		"OnWorkerStarted", "OnWorkerRecycled",
		"OnScaleDecision", "OnMemoryPressure",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_AlertAndShutdownHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	a := &alert.Alert{ID: id.NewAlertID(), Queue: "email", Type: alert.TypeQueueDepth}

	r.EmitAlertRaised(ctx, a)
	r.EmitAlertAcknowledged(ctx, a)
	r.EmitShutdown(ctx)

	expected := []string{"OnAlertRaised", "OnAlertAcknowledged", "OnShutdown"}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Name: "test-job"}

	// No panic, no error propagation. allHooksExt should still fire.
	r.EmitJobDispatched(ctx, j, id.NewWorkerID())

	if len(all.calls) != 1 || all.calls[0] != "OnJobDispatched" {
		t.Fatalf("all: expected [OnJobDispatched] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()

	// None of these should panic or error.
	r.EmitJobDispatched(ctx, &job.Job{}, id.NewWorkerID())
	r.EmitJobCompleted(ctx, &job.Job{}, time.Second)
	r.EmitJobFailed(ctx, &job.Job{}, errors.New("x"))
	r.EmitJobSoftTimeout(ctx, &job.Job{}, time.Second)
	r.EmitJobHardTimeout(ctx, &job.Job{}, time.Minute)
	r.EmitWorkerStarted(ctx, id.NewWorkerID(), "q")
	r.EmitWorkerRecycled(ctx, id.NewWorkerID(), "q", "uptime_exceeded")
	r.EmitScaleDecision(ctx, "q", 2, 1, "down")
	r.EmitMemoryPressure(ctx, id.NewWorkerID(), "q", memmon.ExceedsWarning, 800)
	r.EmitAlertRaised(ctx, &alert.Alert{})
	r.EmitAlertAcknowledged(ctx, &alert.Alert{})
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	ctx := context.Background()
	r.EmitJobDispatched(ctx, &job.Job{}, id.NewWorkerID())

	// Both should be called.
	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}

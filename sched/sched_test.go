package sched_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/metrics"
	"github.com/queueworks/governor/queue"
	"github.com/queueworks/governor/ratelimit"
	"github.com/queueworks/governor/sched"
	"github.com/queueworks/governor/store/memory"
	"github.com/queueworks/governor/timeout"
	"github.com/queueworks/governor/worker"
)

// dispatchRecorder captures dispatch order by queue name.
type dispatchRecorder struct {
	mu     sync.Mutex
	queues []string
}

func (r *dispatchRecorder) Name() string { return "dispatch-recorder" }

func (r *dispatchRecorder) OnJobDispatched(_ context.Context, j *job.Job, _ id.WorkerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues = append(r.queues, j.Queue)
	return nil
}

func (r *dispatchRecorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queues))
	copy(out, r.queues)
	return out
}

type schedHarness struct {
	sched      *sched.Scheduler
	store      *memory.Store
	handlers   *job.Registry
	queues     *queue.Registry
	pools      map[string]*worker.Pool
	dispatched *dispatchRecorder
}

func setupSched(t *testing.T, limiter ratelimit.Limiter, cfgs []queue.Config, opts ...sched.Option) *schedHarness {
	t.Helper()

	handlers := job.NewRegistry()
	extensions := ext.NewRegistry(slog.Default())
	recorder := &dispatchRecorder{}
	extensions.Register(recorder)

	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })

	exec := worker.NewExecutor(
		handlers, extensions, store,
		metrics.NewStore(), timeout.NewTracker(timeout.Config{}),
		dlq.NewService(store, store), slog.Default(),
	)

	queues := queue.NewRegistry(cfgs...)
	pools := make(map[string]*worker.Pool, len(cfgs))
	for _, cfg := range cfgs {
		pool := worker.NewPool(cfg, exec, extensions, slog.Default())
		pool.EnsureCapacity(context.Background(), cfg.MinWorkers)
		pools[cfg.Name] = pool
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			pool.Drain(ctx)
		})
	}

	if limiter != nil {
		opts = append(opts, sched.WithLimiter(limiter))
	}
	s := sched.NewScheduler(queues, store, pools, extensions, slog.Default(), opts...)

	return &schedHarness{
		sched:      s,
		store:      store,
		handlers:   handlers,
		queues:     queues,
		pools:      pools,
		dispatched: recorder,
	}
}

func enqueue(t *testing.T, store *memory.Store, name, queueName string, priority int) *job.Job {
	t.Helper()
	j := &job.Job{
		ID:       id.NewJobID(),
		Name:     name,
		Queue:    queueName,
		Payload:  []byte(`{}`),
		Priority: priority,
	}
	if err := store.Enqueue(context.Background(), j); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return j
}

func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", d, msg)
}

func TestDispatchRunsJob(t *testing.T) {
	h := setupSched(t, nil, []queue.Config{{
		Name: "email", Tier: queue.TierNormal, MinWorkers: 1, MaxWorkers: 4,
	}})
	h.handlers.Register("send-email", func(context.Context, []byte) error { return nil })

	j := enqueue(t, h.store, "send-email", "email", 5)
	h.sched.Dispatch(context.Background())

	waitFor(t, time.Second, func() bool {
		stored, err := h.store.GetJob(context.Background(), j.ID)
		return err == nil && stored.State == job.StateCompleted
	}, "job completed")

	if got := h.dispatched.order(); len(got) != 1 || got[0] != "email" {
		t.Fatalf("dispatch order = %v, want [email]", got)
	}
}

func TestDispatchPrefersCriticalTier(t *testing.T) {
	h := setupSched(t, nil, []queue.Config{
		{Name: "bulk", Tier: queue.TierBackground, MinWorkers: 1, MaxWorkers: 4},
		{Name: "urgent", Tier: queue.TierCritical, MinWorkers: 1, MaxWorkers: 4},
	})
	noop := func(context.Context, []byte) error { return nil }
	h.handlers.Register("bulk-job", noop)
	h.handlers.Register("urgent-job", noop)

	enqueue(t, h.store, "bulk-job", "bulk", 5)
	enqueue(t, h.store, "urgent-job", "urgent", 5)

	h.sched.Dispatch(context.Background())

	waitFor(t, time.Second, func() bool { return len(h.dispatched.order()) == 2 }, "both dispatched")
	if got := h.dispatched.order(); got[0] != "urgent" {
		t.Fatalf("dispatch order = %v, want urgent first", got)
	}
}

func TestDispatchPressureBreaksTieWithinTier(t *testing.T) {
	h := setupSched(t, nil, []queue.Config{
		{Name: "imports", Tier: queue.TierNormal, MinWorkers: 1, MaxWorkers: 4},
		{Name: "exports", Tier: queue.TierNormal, MinWorkers: 1, MaxWorkers: 4},
	})
	release := make(chan struct{})
	blocker := func(context.Context, []byte) error {
		<-release
		return nil
	}
	defer close(release)
	h.handlers.Register("import-job", blocker)
	h.handlers.Register("export-job", blocker)

	// imports carries three waiting jobs to exports' one.
	for range 3 {
		enqueue(t, h.store, "import-job", "imports", 5)
	}
	enqueue(t, h.store, "export-job", "exports", 5)

	h.sched.Dispatch(context.Background())

	waitFor(t, time.Second, func() bool { return len(h.dispatched.order()) == 2 }, "both pools busy")
	got := h.dispatched.order()
	if got[0] != "imports" || got[1] != "exports" {
		t.Fatalf("dispatch order = %v, want [imports exports]", got)
	}
}

func TestDispatchSkipsDisabledQueue(t *testing.T) {
	h := setupSched(t, nil, []queue.Config{{
		Name: "paused", Tier: queue.TierNormal, MinWorkers: 1, MaxWorkers: 4, Disabled: true,
	}})
	h.handlers.Register("paused-job", func(context.Context, []byte) error { return nil })

	j := enqueue(t, h.store, "paused-job", "paused", 5)
	h.sched.Dispatch(context.Background())

	stored, err := h.store.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.State != job.StatePending {
		t.Fatalf("job state = %q, want %q", stored.State, job.StatePending)
	}
	if got := h.dispatched.order(); len(got) != 0 {
		t.Fatalf("dispatched from disabled queue: %v", got)
	}
}

func TestDispatchNoIdleWorkersLeavesJobPending(t *testing.T) {
	h := setupSched(t, nil, []queue.Config{{
		Name: "email", Tier: queue.TierNormal, MinWorkers: 0, MaxWorkers: 4,
	}})
	h.handlers.Register("send-email", func(context.Context, []byte) error { return nil })

	j := enqueue(t, h.store, "send-email", "email", 5)
	h.sched.Dispatch(context.Background())

	stored, err := h.store.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.State != job.StatePending {
		t.Fatalf("job state = %q, want %q", stored.State, job.StatePending)
	}
}

func TestDispatchRateLimitDenialRequeues(t *testing.T) {
	h := setupSched(t, ratelimit.NewMemory(), []queue.Config{{
		Name: "api-sync", Tier: queue.TierNormal, MinWorkers: 2, MaxWorkers: 4,
		ResourceKey: "partner-api", ResourceLimit: 1, ResourceWindow: time.Minute,
	}})
	h.handlers.Register("sync-job", func(context.Context, []byte) error { return nil })

	enqueue(t, h.store, "sync-job", "api-sync", 5)
	j2 := enqueue(t, h.store, "sync-job", "api-sync", 5)

	h.sched.Dispatch(context.Background())

	// Only one claim fit the resource budget; the second was requeued.
	if got := h.dispatched.order(); len(got) != 1 {
		t.Fatalf("dispatched %d jobs, want 1: %v", len(got), got)
	}
	stored, err := h.store.GetJob(context.Background(), j2.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.State != job.StatePending {
		t.Fatalf("denied job state = %q, want %q", stored.State, job.StatePending)
	}

	// The resource stays paused until the window resets, so another
	// pass dispatches nothing new.
	h.sched.Dispatch(context.Background())
	if got := h.dispatched.order(); len(got) != 1 {
		t.Fatalf("dispatched %d jobs after pause, want 1: %v", len(got), got)
	}
}

func TestDispatchThrottleBoundsOnePass(t *testing.T) {
	h := setupSched(t, nil, []queue.Config{{
		Name: "drip", Tier: queue.TierNormal, MinWorkers: 2, MaxWorkers: 4,
		DispatchRate: 0.001, DispatchBurst: 1,
	}})
	h.handlers.Register("drip-job", func(context.Context, []byte) error { return nil })

	enqueue(t, h.store, "drip-job", "drip", 5)
	enqueue(t, h.store, "drip-job", "drip", 5)

	h.sched.Dispatch(context.Background())

	if got := h.dispatched.order(); len(got) != 1 {
		t.Fatalf("dispatched %d jobs, want 1 (throttle burst): %v", len(got), got)
	}
}

func TestSchedulerWakesOnEnqueue(t *testing.T) {
	h := setupSched(t, nil, []queue.Config{{
		Name: "email", Tier: queue.TierNormal, MinWorkers: 1, MaxWorkers: 4,
	}}, sched.WithTick(time.Hour))
	h.handlers.Register("send-email", func(context.Context, []byte) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = h.sched.Stop(stopCtx)
	})

	j := enqueue(t, h.store, "send-email", "email", 5)

	waitFor(t, 2*time.Second, func() bool {
		stored, err := h.store.GetJob(context.Background(), j.ID)
		return err == nil && stored.State == job.StateCompleted
	}, "job completed via enqueue wake")
}

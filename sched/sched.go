package sched

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/backoff"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/queue"
	"github.com/queueworks/governor/ratelimit"
	"github.com/queueworks/governor/worker"
)

// DefaultTick is the idle dispatch cadence when no wake signal arrives.
const DefaultTick = 250 * time.Millisecond

// blockedResource pauses dispatch for queues bound to a rate-limited
// resource until the window opens again.
type blockedResource struct {
	until  time.Time
	streak int
}

// Scheduler is the central dispatch loop. Each pass walks priority
// tiers from most critical down, picks the queue under the most
// pressure within a tier, claims one job, and hands it to an idle
// worker. Rate-limited claims are requeued and their resource key is
// paused until the window resets.
type Scheduler struct {
	registry   *queue.Registry
	backend    backend.Backend
	pools      map[string]*worker.Pool
	limiter    ratelimit.Limiter
	extensions *ext.Registry
	pacing     backoff.Strategy
	logger     *slog.Logger
	tick       time.Duration

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	blocked map[string]*blockedResource
	now     func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLimiter wires the admission limiter consulted for queues that
// declare a ResourceKey. Without one, resource budgets are ignored.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Scheduler) { s.limiter = l }
}

// WithTick overrides the idle dispatch cadence.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithPacing overrides the backoff strategy used when the limiter
// denies without a usable reset time.
func WithPacing(strategy backoff.Strategy) Option {
	return func(s *Scheduler) { s.pacing = strategy }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler over the given pools. The pools map
// is keyed by queue name and must cover every registered queue that
// should receive work.
func NewScheduler(
	registry *queue.Registry,
	be backend.Backend,
	pools map[string]*worker.Pool,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		registry:   registry,
		backend:    be,
		pools:      pools,
		extensions: extensions,
		pacing:     backoff.DefaultStrategy(),
		logger:     logger,
		tick:       DefaultTick,
		wakeCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		blocked:    make(map[string]*blockedResource),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the dispatch loop. It returns immediately; the loop
// runs until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop halts the dispatch loop and waits for the in-progress pass to
// finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wake nudges the loop to dispatch now instead of waiting for the next
// tick. Non-blocking; coalesces with a pending wake.
func (s *Scheduler) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	var notify <-chan string
	if n, ok := s.backend.(backend.Notifier); ok {
		notify = n.NotifyEnqueued()
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-notify:
			s.Dispatch(ctx)
		case <-s.wakeCh:
			s.Dispatch(ctx)
		case <-ticker.C:
			s.Dispatch(ctx)
		}
	}
}

// Dispatch runs assignment passes until no further job can be placed.
// A pass with nothing eligible is a no-op, not an error.
func (s *Scheduler) Dispatch(ctx context.Context) {
	for s.dispatchOne(ctx) {
	}
}

// candidate is one queue eligible for assignment within a tier.
type candidate struct {
	name     string
	pressure float64
}

// dispatchOne places at most one job and reports whether it did.
func (s *Scheduler) dispatchOne(ctx context.Context) bool {
	if s.totalActive() >= s.registry.GlobalCap() {
		return false
	}

	byTier := s.registry.ByTier()
	for _, tier := range queue.Tiers() {
		cands := s.rankTier(ctx, byTier[tier])
		for _, c := range cands {
			if s.tryAssign(ctx, c.name) {
				return true
			}
		}
	}
	return false
}

// rankTier filters a tier's queues down to those with waiting work and
// an idle worker, ordered by pressure (waiting jobs per worker, highest
// first).
func (s *Scheduler) rankTier(ctx context.Context, names []string) []candidate {
	cands := make([]candidate, 0, len(names))
	for _, name := range names {
		pool, ok := s.pools[name]
		if !ok || pool.IdleCount() == 0 {
			continue
		}
		depth, err := s.backend.Depth(ctx, name)
		if err != nil {
			s.logger.Error("depth probe failed",
				slog.String("queue", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if depth == 0 {
			continue
		}
		allocated := pool.Size()
		if allocated < 1 {
			allocated = 1
		}
		cands = append(cands, candidate{name: name, pressure: float64(depth) / float64(allocated)})
	}
	sort.SliceStable(cands, func(i, k int) bool { return cands[i].pressure > cands[k].pressure })
	return cands
}

// tryAssign claims one job from the queue and hands it to an idle
// worker, consulting the dispatch throttle and the resource limiter
// first. A post-claim denial requeues the job.
func (s *Scheduler) tryAssign(ctx context.Context, name string) bool {
	cfg, ok := s.registry.Get(name)
	if !ok {
		return false
	}
	if cfg.ResourceKey != "" && s.resourceBlocked(cfg.ResourceKey) {
		return false
	}
	if !s.registry.AllowDispatch(name) {
		return false
	}

	claimed, err := s.backend.DequeueEligible(ctx, name, 1)
	if err != nil {
		s.logger.Error("dequeue failed",
			slog.String("queue", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	if len(claimed) == 0 {
		return false
	}
	j := claimed[0]

	if cfg.ResourceKey != "" && s.limiter != nil {
		dec, err := s.limiter.TryAcquire(ctx, cfg.ResourceKey, cfg.ResourceLimit, cfg.ResourceWindow)
		if err != nil {
			s.logger.Error("rate limiter check failed",
				slog.String("queue", name),
				slog.String("resource", cfg.ResourceKey),
				slog.String("error", err.Error()),
			)
			s.requeue(ctx, j)
			return false
		}
		if !dec.Allowed {
			s.blockResource(cfg.ResourceKey, dec.ResetAt)
			s.requeue(ctx, j)
			s.logger.Debug("dispatch denied by rate limiter",
				slog.String("queue", name),
				slog.String("resource", cfg.ResourceKey),
				slog.Time("reset_at", dec.ResetAt),
			)
			return false
		}
		s.clearBlock(cfg.ResourceKey)
	}

	pool := s.pools[name]
	workerID, err := pool.Assign(ctx, j)
	if err != nil {
		// Lost the idle worker since ranking; put the job back.
		s.requeue(ctx, j)
		return false
	}
	s.extensions.EmitJobDispatched(ctx, j, workerID)
	return true
}

func (s *Scheduler) requeue(ctx context.Context, j *job.Job) {
	if err := s.backend.Requeue(ctx, j.ID); err != nil {
		s.logger.Error("requeue failed",
			slog.String("job_id", j.ID.String()),
			slog.String("queue", j.Queue),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) totalActive() int {
	total := 0
	for _, p := range s.pools {
		total += p.ActiveCount()
	}
	return total
}

// ──────────────────────────────────────────────────
// Resource pausing
// ──────────────────────────────────────────────────

func (s *Scheduler) resourceBlocked(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocked[key]
	return ok && s.now().Before(b.until)
}

// blockResource pauses a resource key until resetAt, falling back to
// the pacing strategy when the limiter gave no usable reset time.
// Repeated denials stretch the fallback delay.
func (s *Scheduler) blockResource(key string, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blocked[key]
	if !ok {
		b = &blockedResource{}
		s.blocked[key] = b
	}
	now := s.now()
	if resetAt.After(now) {
		b.until = resetAt
	} else {
		b.until = now.Add(s.pacing.Delay(b.streak))
	}
	b.streak++
}

func (s *Scheduler) clearBlock(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, key)
}

// ──────────────────────────────────────────────────
// Wake extension
// ──────────────────────────────────────────────────

// wakeExt nudges the scheduler whenever capacity frees up.
type wakeExt struct{ s *Scheduler }

func (w *wakeExt) Name() string { return "scheduler-wake" }

func (w *wakeExt) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	w.s.Wake()
	return nil
}

func (w *wakeExt) OnJobFailed(context.Context, *job.Job, error) error {
	w.s.Wake()
	return nil
}

func (w *wakeExt) OnJobHardTimeout(context.Context, *job.Job, time.Duration) error {
	w.s.Wake()
	return nil
}

// WakeExtension returns an extension that wakes the scheduler when a
// worker finishes a job. Register it so freed capacity is reused
// without waiting for the next tick.
func (s *Scheduler) WakeExtension() ext.Extension {
	return &wakeExt{s: s}
}

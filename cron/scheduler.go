package cron

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
)

// DefaultTick is how often the scheduler checks for due entries.
const DefaultTick = time.Second

// LeaderFunc reports whether this node may fire cron entries. In a
// clustered deployment it is cluster.Membership.IsLeader; a
// single-node deployment always returns true.
type LeaderFunc func() bool

// cronParser accepts standard 5-field expressions and descriptors like
// "@every 30s" or "@hourly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTick overrides the tick interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithLeaderFunc gates firing on cluster leadership.
func WithLeaderFunc(fn LeaderFunc) Option {
	return func(s *Scheduler) { s.leader = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler fires due cron entries on a tick loop. When clustering is
// enabled only the leader fires, so a fleet enqueues each schedule
// exactly once per occurrence.
type Scheduler struct {
	store      Store
	backend    backend.Backend
	extensions *ext.Registry
	leader     LeaderFunc
	logger     *slog.Logger

	tick time.Duration
	now  func() time.Time

	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a Scheduler over the given entry store and
// queue backend.
func NewScheduler(store Store, be backend.Backend, extensions *ext.Registry, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		backend:    be,
		extensions: extensions,
		leader:     func() bool { return true },
		logger:     logger,
		tick:       DefaultTick,
		now:        time.Now,
		parsed:     make(map[string]cronlib.Schedule),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates the entry's schedule, computes its first NextRunAt, and
// persists it. A zero ID is assigned; Enabled defaults as given.
func (s *Scheduler) Add(ctx context.Context, entry *Entry) error {
	sched, err := s.schedule(entry.Schedule)
	if err != nil {
		return err
	}
	if entry.ID.IsNil() {
		entry.ID = id.NewCronID()
	}
	now := s.now().UTC()
	entry.CreatedAt = now
	next := sched.Next(now)
	entry.NextRunAt = &next
	return s.store.RegisterCron(ctx, entry)
}

// Remove deletes a cron entry.
func (s *Scheduler) Remove(ctx context.Context, entryID id.CronID) error {
	return s.store.DeleteCron(ctx, entryID)
}

// SetEnabled toggles an entry. Re-enabling recomputes NextRunAt from
// now so a long-disabled entry does not fire a backlog.
func (s *Scheduler) SetEnabled(ctx context.Context, entryID id.CronID, enabled bool) error {
	entry, err := s.store.GetCron(ctx, entryID)
	if err != nil {
		return err
	}
	entry.Enabled = enabled
	if enabled {
		sched, err := s.schedule(entry.Schedule)
		if err != nil {
			return err
		}
		next := sched.Next(s.now().UTC())
		entry.NextRunAt = &next
	}
	return s.store.UpdateCron(ctx, entry)
}

// Start launches the tick loop.
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

// Stop halts the tick loop.
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
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every due entry. Exported so the engine can force a pass
// and tests can drive the scheduler deterministically.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.leader() {
		return
	}

	entries, err := s.store.ListCrons(ctx)
	if err != nil {
		s.logger.Error("list cron entries failed", slog.String("error", err.Error()))
		return
	}

	now := s.now().UTC()
	for _, entry := range entries {
		if !entry.Due(now) {
			continue
		}
		s.fire(ctx, entry, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, entry *Entry, now time.Time) {
	j := &job.Job{
		ID:         id.NewJobID(),
		Name:       entry.JobName,
		Queue:      entry.Queue,
		Payload:    entry.Payload,
		Priority:   entry.Priority,
		State:      job.StatePending,
		EnqueuedAt: now,
	}
	if err := s.backend.Enqueue(ctx, j); err != nil {
		s.logger.Error("cron enqueue failed",
			slog.String("cron_name", entry.Name),
			slog.String("job_name", entry.JobName),
			slog.String("error", err.Error()),
		)
		return
	}

	entry.LastRunAt = &now
	if sched, err := s.schedule(entry.Schedule); err != nil {
		s.logger.Error("cron schedule parse failed",
			slog.String("cron_name", entry.Name),
			slog.String("schedule", entry.Schedule),
			slog.String("error", err.Error()),
		)
	} else {
		next := sched.Next(now)
		entry.NextRunAt = &next
	}
	if err := s.store.UpdateCron(ctx, entry); err != nil {
		s.logger.Error("cron entry update failed",
			slog.String("cron_id", entry.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.extensions.EmitCronFired(ctx, entry.Name, j.ID)
	s.logger.Info("cron fired",
		slog.String("cron_name", entry.Name),
		slog.String("job_name", entry.JobName),
		slog.String("queue", entry.Queue),
		slog.String("job_id", j.ID.String()),
	)
}

// schedule returns the cached parse of expr.
func (s *Scheduler) schedule(expr string) (cronlib.Schedule, error) {
	s.parsedMu.RLock()
	sched, ok := s.parsed[expr]
	s.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	s.parsedMu.Lock()
	s.parsed[expr] = sched
	s.parsedMu.Unlock()
	return sched, nil
}

// Register is a typed convenience for adding a schedule: the payload is
// JSON-encoded and the entry is enabled immediately.
func Register[T any](ctx context.Context, s *Scheduler, name, expr, jobName, queueName string, payload T) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		Name:     name,
		Schedule: expr,
		JobName:  jobName,
		Queue:    queueName,
		Payload:  raw,
		Enabled:  true,
	}
	if err := s.Add(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

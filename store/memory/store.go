// Package memory provides a fully in-memory store implementation.
// Safe for concurrent access. Intended for unit testing, development,
// and single-process deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/cluster"
	"github.com/queueworks/governor/cron"
	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
)

// notifyBuffer bounds the enqueue wake channel. Sends drop when the
// scheduler lags; the next dispatch tick picks the jobs up anyway.
const notifyBuffer = 128

// Store is a fully in-memory implementation of every governor store
// contract: queue backend, alert store, and dead letter queue.
type Store struct {
	mu sync.RWMutex

	jobs   map[string]*job.Job
	alerts map[string]*alert.Alert
	dlqs   map[string]*dlq.Entry
	nodes  map[string]*cluster.Node
	crons  map[string]*cron.Entry
	leader *leaderLease

	notifyCh chan string
	closed   bool
}

// Compile-time interface checks. The composite store interface lives
// in the parent package; each subsystem contract is verified here.
var (
	_ backend.Backend  = (*Store)(nil)
	_ backend.Notifier = (*Store)(nil)
	_ alert.Store      = (*Store)(nil)
	_ dlq.Store        = (*Store)(nil)
	_ cluster.Store    = (*Store)(nil)
	_ cron.Store       = (*Store)(nil)
)

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[string]*job.Job),
		alerts:   make(map[string]*alert.Alert),
		dlqs:     make(map[string]*dlq.Entry),
		nodes:    make(map[string]*cluster.Node),
		crons:    make(map[string]*cron.Entry),
		notifyCh: make(chan string, notifyBuffer),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Ping / Close
// ──────────────────────────────────────────────────

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close marks the store closed. Subsequent writes fail.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Queue backend
// ──────────────────────────────────────────────────

// Enqueue persists a new job in pending state and notifies the
// scheduler.
func (m *Store) Enqueue(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return governor.ErrStoreClosed
	}

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		m.mu.Unlock()
		return governor.ErrJobAlreadyExists
	}
	cp := *j
	cp.State = job.StatePending
	if cp.EnqueuedAt.IsZero() {
		cp.EnqueuedAt = time.Now().UTC()
	}
	m.jobs[key] = &cp
	m.mu.Unlock()

	select {
	case m.notifyCh <- cp.Queue:
	default:
	}
	return nil
}

// DequeueEligible atomically claims up to maxCount pending jobs from
// the named queue, ordered by priority descending then enqueue time
// ascending.
func (m *Store) DequeueEligible(_ context.Context, queueName string, maxCount int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make([]*job.Job, 0, maxCount)
	for _, j := range m.jobs {
		if j.State != job.StatePending || j.Queue != queueName {
			continue
		}
		candidates = append(candidates, j)
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority > candidates[k].Priority
		}
		return candidates[i].EnqueuedAt.Before(candidates[k].EnqueuedAt)
	})

	if maxCount > 0 && len(candidates) > maxCount {
		candidates = candidates[:maxCount]
	}

	result := make([]*job.Job, len(candidates))
	for i, j := range candidates {
		j.State = job.StateRunning
		// Return a copy so callers can mutate without racing with the store.
		cp := *j
		result[i] = &cp
	}
	return result, nil
}

// Ack marks a claimed job as terminally completed.
func (m *Store) Ack(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return governor.ErrJobNotFound
	}
	j.State = job.StateCompleted
	return nil
}

// Nack marks a claimed job as failed with the given reason. The memory
// store has no redelivery policy; failed jobs stay failed until
// replayed from the DLQ.
func (m *Store) Nack(_ context.Context, jobID id.JobID, reason job.FailureReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return governor.ErrJobNotFound
	}
	j.State = job.StateFailed
	j.Reason = reason
	return nil
}

// Requeue returns a claimed job to pending, keeping its original
// enqueue time so it retains its FIFO position.
func (m *Store) Requeue(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return governor.ErrJobNotFound
	}
	j.State = job.StatePending
	j.Reason = ""
	return nil
}

// Depth returns the number of pending jobs on a queue.
func (m *Store) Depth(_ context.Context, queueName string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, j := range m.jobs {
		if j.State == job.StatePending && j.Queue == queueName {
			n++
		}
	}
	return n, nil
}

// NotifyEnqueued returns the enqueue wake channel.
func (m *Store) NotifyEnqueued() <-chan string { return m.notifyCh }

// GetJob retrieves a job by ID. Used by tests and dashboard queries.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, governor.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// CountByState returns the number of jobs on a queue in the given state.
func (m *Store) CountByState(_ context.Context, queueName string, state job.State) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, j := range m.jobs {
		if j.Queue == queueName && j.State == state {
			n++
		}
	}
	return n, nil
}

package ext

import (
	"context"
	"time"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobDispatched is called when the scheduler hands a job to a worker.
type JobDispatched interface {
	OnJobDispatched(ctx context.Context, j *job.Job, workerID id.WorkerID) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job's handler returns an error.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobSoftTimeout is called when a running job crosses its soft
// deadline. The job keeps running; this is a signal, not a kill.
type JobSoftTimeout interface {
	OnJobSoftTimeout(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobHardTimeout is called when a job is forcibly abandoned at its
// hard deadline.
type JobHardTimeout interface {
	OnJobHardTimeout(ctx context.Context, j *job.Job, deadline time.Duration) error
}

// ──────────────────────────────────────────────────
// Worker lifecycle hooks
// ──────────────────────────────────────────────────

// WorkerStarted is called when a worker goroutine spins up.
type WorkerStarted interface {
	OnWorkerStarted(ctx context.Context, workerID id.WorkerID, queueName string) error
}

// WorkerRecycled is called after a worker is retired and replaced.
// Reason is one of the worker package's recycle reasons, e.g.
// "job_count_exceeded" or "memory_critical".
type WorkerRecycled interface {
	OnWorkerRecycled(ctx context.Context, workerID id.WorkerID, queueName, reason string) error
}

// ──────────────────────────────────────────────────
// Scaling and resource hooks
// ──────────────────────────────────────────────────

// ScaleDecision is called whenever the autoscaler changes a queue's
// desired worker count. Direction is "up" or "down".
type ScaleDecision interface {
	OnScaleDecision(ctx context.Context, queueName string, from, to int, direction string) error
}

// MemoryPressure is called when a worker crosses a memory threshold.
type MemoryPressure interface {
	OnMemoryPressure(ctx context.Context, workerID id.WorkerID, queueName string, status memmon.Status, usedMB float64) error
}

// ──────────────────────────────────────────────────
// Alert hooks
// ──────────────────────────────────────────────────

// AlertRaised is called when the alert engine raises or escalates an
// alert.
type AlertRaised interface {
	OnAlertRaised(ctx context.Context, a *alert.Alert) error
}

// AlertAcknowledged is called when an operator acknowledges an alert.
type AlertAcknowledged interface {
	OnAlertAcknowledged(ctx context.Context, a *alert.Alert) error
}

// ──────────────────────────────────────────────────
// Cron hooks
// ──────────────────────────────────────────────────

// CronFired is called after a cron schedule enqueues its job.
type CronFired interface {
	OnCronFired(ctx context.Context, scheduleName string, jobID id.JobID) error
}

// ──────────────────────────────────────────────────
// Engine hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown, after the dispatch loop
// stops and before stores close.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

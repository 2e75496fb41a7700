// Package worker provides the job execution engine: an Executor that
// invokes registered handlers through middleware under adaptive
// deadlines, and a per-queue Pool of recyclable worker goroutines the
// scheduler assigns jobs to.
package worker

import (
	"time"

	"github.com/queueworks/governor/id"
)

// State is the lifecycle state of a single worker goroutine.
type State string

const (
	// StateIdle means the worker is waiting for an assignment.
	StateIdle State = "idle"
	// StateBusy means the worker is executing a job.
	StateBusy State = "busy"
	// StateRetired means the worker has exited and will not accept work.
	StateRetired State = "retired"
)

// RecycleReason records why a worker was retired and replaced.
type RecycleReason string

const (
	// ReasonJobCount means the worker hit its per-worker job budget.
	ReasonJobCount RecycleReason = "job_count_exceeded"
	// ReasonUptime means the worker exceeded its maximum uptime.
	ReasonUptime RecycleReason = "uptime_exceeded"
	// ReasonMemorySoft means the worker crossed the soft memory limit
	// and was recycled at a job boundary.
	ReasonMemorySoft RecycleReason = "memory_soft"
	// ReasonMemoryCritical means the worker crossed the hard memory
	// limit and was recycled immediately.
	ReasonMemoryCritical RecycleReason = "memory_critical"
	// ReasonHardTimeout means the worker's job blew its hard deadline
	// and the worker was replaced because its goroutine was abandoned.
	ReasonHardTimeout RecycleReason = "hard_timeout"
	// ReasonScaleDown means the autoscaler shrank the pool.
	ReasonScaleDown RecycleReason = "scale_down"
	// ReasonShutdown means the pool is draining for shutdown.
	ReasonShutdown RecycleReason = "shutdown"
)

// Worker is a point-in-time snapshot of one worker goroutine, exposed
// for dashboards and tests.
type Worker struct {
	ID            id.WorkerID `json:"id"`
	Queue         string      `json:"queue"`
	State         State       `json:"state"`
	StartedAt     time.Time   `json:"started_at"`
	JobsProcessed int         `json:"jobs_processed"`
	CurrentJobID  id.JobID    `json:"current_job_id,omitempty"`
	BusySince     time.Time   `json:"busy_since,omitempty"`
}

// Uptime returns how long the worker has been alive as of now.
func (w Worker) Uptime(now time.Time) time.Duration {
	return now.Sub(w.StartedAt)
}

package job

import (
	"time"

	"github.com/queueworks/governor/id"
)

// State represents the lifecycle state of a job as seen by this layer.
// The durable backend owns redelivery; every dispatched job resolves to
// exactly one terminal state (completed or failed) that is acked or
// nacked back to it.
type State string

const (
	// StatePending means the job is waiting in the backend.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCompleted means the job finished successfully and was acked.
	StateCompleted State = "completed"
	// StateFailed means the job failed and was nacked with a reason.
	StateFailed State = "failed"
)

// FailureReason classifies why a job was marked failed.
type FailureReason string

const (
	// ReasonHandlerError is a plain business-logic failure.
	ReasonHandlerError FailureReason = "handler_error"
	// ReasonHardTimeout means the job blew through its hard deadline and
	// its worker was force-terminated.
	ReasonHardTimeout FailureReason = "hard_timeout"
	// ReasonShutdown means the job was still in flight past the
	// shutdown grace period.
	ReasonShutdown FailureReason = "shutdown"
)

// Job is a unit of work dequeued from the durable backend.
type Job struct {
	ID       id.JobID `json:"id"`
	Name     string   `json:"name"`
	Queue    string   `json:"queue"`
	Payload  []byte   `json:"payload"`
	Priority int      `json:"priority"`
	State    State    `json:"state"`

	EnqueuedAt time.Time     `json:"enqueued_at"`
	LastError  string        `json:"last_error,omitempty"`
	Reason     FailureReason `json:"reason,omitempty"`
}

// Execution is the transient record of one in-flight job. It exists from
// assignment until completion, failure, or timeout, and is the unit the
// timeout handler enforces deadlines against.
type Execution struct {
	ID           id.ExecutionID `json:"id"`
	JobID        id.JobID       `json:"job_id"`
	Queue        string         `json:"queue"`
	WorkerID     id.WorkerID    `json:"worker_id"`
	StartedAt    time.Time      `json:"started_at"`
	SoftDeadline time.Time      `json:"soft_deadline"`
	HardDeadline time.Time      `json:"hard_deadline"`
}

// SoftExpired reports whether now is past the soft deadline.
func (e *Execution) SoftExpired(now time.Time) bool {
	return !e.SoftDeadline.IsZero() && now.After(e.SoftDeadline)
}

// HardExpired reports whether now is past the hard deadline.
func (e *Execution) HardExpired(now time.Time) bool {
	return !e.HardDeadline.IsZero() && now.After(e.HardDeadline)
}

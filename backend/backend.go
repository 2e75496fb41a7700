package backend

import (
	"context"

	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
)

// Backend is the durable queue the governor drains. Implementations must
// be safe for concurrent use.
type Backend interface {
	// Enqueue persists a new job on the named queue.
	Enqueue(ctx context.Context, j *job.Job) error

	// DequeueEligible atomically claims up to maxCount pending jobs from
	// the named queue, ordered by priority (descending) then enqueue
	// time (ascending, FIFO among equal priorities).
	DequeueEligible(ctx context.Context, queueName string, maxCount int) ([]*job.Job, error)

	// Ack marks a claimed job as terminally completed.
	Ack(ctx context.Context, jobID id.JobID) error

	// Nack returns a claimed job with a failure reason. The backend's
	// redelivery policy decides whether it is retried, dead-lettered,
	// or dropped.
	Nack(ctx context.Context, jobID id.JobID, reason job.FailureReason) error

	// Requeue returns a claimed job to pending without recording a
	// failure. The original enqueue time is preserved so the job keeps
	// its FIFO position. Used when dispatch is denied after the claim,
	// e.g. by the rate limiter.
	Requeue(ctx context.Context, jobID id.JobID) error

	// Depth returns the number of pending (unclaimed) jobs on a queue.
	// The scheduler and autoscaler read it every tick.
	Depth(ctx context.Context, queueName string) (int, error)
}

// Notifier is an optional interface a Backend may implement to wake the
// scheduler on enqueue instead of waiting for the next tick.
type Notifier interface {
	// NotifyEnqueued returns a channel that receives the queue name
	// after each successful Enqueue. Implementations must never block
	// on the send (drop when the receiver lags).
	NotifyEnqueued() <-chan string
}

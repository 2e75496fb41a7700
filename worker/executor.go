package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/metrics"
	"github.com/queueworks/governor/middleware"
	"github.com/queueworks/governor/timeout"
)

// Result reports what happened to a single execution. The pool uses
// HardTimedOut to decide whether the worker must be replaced.
type Result struct {
	Elapsed      time.Duration
	SoftTimedOut bool
	HardTimedOut bool
	Err          error
}

// Executor runs a single job through middleware and the registered
// handler under the queue's adaptive deadlines, then acks or nacks the
// backend, records metrics and latency samples, and emits lifecycle
// events.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	backend    backend.Backend
	metrics    *metrics.Store
	timeouts   *timeout.Tracker
	dlqService *dlq.Service
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor. dlqService may be nil, in which case
// terminally failed jobs are nacked but not copied to the DLQ.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	be backend.Backend,
	ms *metrics.Store,
	tt *timeout.Tracker,
	dlqService *dlq.Service,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		extensions: extensions,
		backend:    be,
		metrics:    ms,
		timeouts:   tt,
		dlqService: dlqService,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// StartExecution builds the transient in-flight record for a job about
// to run, with deadlines resolved from the queue's latency history. The
// pool publishes it until the job reaches a terminal state.
func (e *Executor) StartExecution(j *job.Job, workerID id.WorkerID) *job.Execution {
	soft, hard := e.timeouts.Deadlines(j.Queue)
	now := time.Now().UTC()
	return &job.Execution{
		ID:           id.NewExecutionID(),
		JobID:        j.ID,
		Queue:        j.Queue,
		WorkerID:     workerID,
		StartedAt:    now,
		SoftDeadline: now.Add(soft),
		HardDeadline: now.Add(hard),
	}
}

// Execute runs a job to a terminal outcome.
//
// The handler runs in its own goroutine so the executor can enforce
// both deadlines: at the soft deadline the job is flagged and keeps
// running; at the hard deadline the goroutine is abandoned, the job is
// nacked with reason hard_timeout, and the caller must recycle the
// worker. Cooperative handlers see ctx cancelled at the hard deadline
// and exit on their own.
func (e *Executor) Execute(ctx context.Context, j *job.Job, workerID id.WorkerID) Result {
	handler, ok := e.registry.Get(j.Name)
	if !ok {
		err := fmt.Errorf("no handler registered for job %q", j.Name)
		e.failJob(ctx, j, err)
		return Result{Err: err}
	}

	soft, hard := e.timeouts.Deadlines(j.Queue)
	start := time.Now()

	// The terminal handler that calls the registered job handler.
	terminal := func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	}

	// The handler's context expires at the hard deadline so cooperative
	// handlers exit on their own; the goroutine abandonment below is the
	// fallback for handlers that ignore it.
	execCtx, cancel := context.WithDeadline(ctx, start.Add(hard))
	defer cancel()

	// Buffered so an abandoned handler goroutine can still send its
	// result and exit after a hard timeout.
	done := make(chan error, 1)
	go func() {
		done <- e.mw(execCtx, j, terminal)
	}()

	softTimer := time.NewTimer(soft)
	defer softTimer.Stop()
	hardTimer := time.NewTimer(hard)
	defer hardTimer.Stop()

	softFired := false
	for {
		select {
		case err := <-done:
			elapsed := time.Since(start)
			if err != nil {
				// A cooperative handler that exits on the expired exec
				// context raced the hard timer; same terminal outcome.
				if errors.Is(err, context.DeadlineExceeded) && execCtx.Err() != nil {
					e.hardTimeoutJob(ctx, j, workerID, hard)
					return Result{Elapsed: elapsed, SoftTimedOut: softFired, HardTimedOut: true, Err: err}
				}
				e.failJob(ctx, j, err)
				e.metrics.RecordFailure(j.Queue, elapsed)
				e.timeouts.Record(j.Queue, elapsed)
				return Result{Elapsed: elapsed, SoftTimedOut: softFired, Err: err}
			}
			e.completeJob(ctx, j, elapsed)
			return Result{Elapsed: elapsed, SoftTimedOut: softFired}

		case <-softTimer.C:
			softFired = true
			e.metrics.RecordSoftTimeout(j.Queue)
			e.extensions.EmitJobSoftTimeout(ctx, j, time.Since(start))
			e.logger.Warn("job crossed soft deadline",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
				slog.String("queue", j.Queue),
				slog.String("worker_id", workerID.String()),
				slog.Duration("soft_deadline", soft),
			)

		case <-hardTimer.C:
			elapsed := time.Since(start)
			e.hardTimeoutJob(ctx, j, workerID, hard)
			return Result{Elapsed: elapsed, SoftTimedOut: softFired, HardTimedOut: true,
				Err: fmt.Errorf("job %s exceeded hard deadline %s", j.Name, hard)}
		}
	}
}

// completeJob acks the backend and records success.
func (e *Executor) completeJob(ctx context.Context, j *job.Job, elapsed time.Duration) {
	j.State = job.StateCompleted
	e.metrics.RecordCompletion(j.Queue, elapsed)
	e.timeouts.Record(j.Queue, elapsed)

	if err := e.backend.Ack(ctx, j.ID); err != nil {
		e.logger.Error("failed to ack completed job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	e.extensions.EmitJobCompleted(ctx, j, elapsed)
}

// failJob nacks the backend with handler_error and copies the job to
// the DLQ.
func (e *Executor) failJob(ctx context.Context, j *job.Job, handlerErr error) {
	j.State = job.StateFailed
	j.Reason = job.ReasonHandlerError
	j.LastError = handlerErr.Error()

	if err := e.backend.Nack(ctx, j.ID, job.ReasonHandlerError); err != nil {
		e.logger.Error("failed to nack failed job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	e.pushDLQ(ctx, j, job.ReasonHandlerError, handlerErr)
	e.extensions.EmitJobFailed(ctx, j, handlerErr)

	e.logger.Warn("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("queue", j.Queue),
		slog.String("error", handlerErr.Error()),
	)
}

// hardTimeoutJob handles a job that blew through the hard deadline.
// The handler goroutine is abandoned; it holds a cancelled context and
// a buffered result channel, so it can finish and exit without anyone
// listening.
func (e *Executor) hardTimeoutJob(ctx context.Context, j *job.Job, workerID id.WorkerID, hard time.Duration) {
	j.State = job.StateFailed
	j.Reason = job.ReasonHardTimeout
	e.metrics.RecordHardTimeout(j.Queue)

	if err := e.backend.Nack(ctx, j.ID, job.ReasonHardTimeout); err != nil {
		e.logger.Error("failed to nack hard-timed-out job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	e.pushDLQ(ctx, j, job.ReasonHardTimeout, nil)
	e.extensions.EmitJobHardTimeout(ctx, j, hard)

	e.logger.Error("job killed at hard deadline",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("queue", j.Queue),
		slog.String("worker_id", workerID.String()),
		slog.Duration("hard_deadline", hard),
	)
}

func (e *Executor) pushDLQ(ctx context.Context, j *job.Job, reason job.FailureReason, cause error) {
	if e.dlqService == nil {
		return
	}
	if err := e.dlqService.Push(ctx, j, reason, cause); err != nil {
		e.logger.Error("failed to push job to DLQ",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

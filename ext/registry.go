package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobDispatchedEntry struct {
	name string
	hook JobDispatched
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobSoftTimeoutEntry struct {
	name string
	hook JobSoftTimeout
}

type jobHardTimeoutEntry struct {
	name string
	hook JobHardTimeout
}

type workerStartedEntry struct {
	name string
	hook WorkerStarted
}

type workerRecycledEntry struct {
	name string
	hook WorkerRecycled
}

type scaleDecisionEntry struct {
	name string
	hook ScaleDecision
}

type memoryPressureEntry struct {
	name string
	hook MemoryPressure
}

type alertRaisedEntry struct {
	name string
	hook AlertRaised
}

type alertAcknowledgedEntry struct {
	name string
	hook AlertAcknowledged
}

type cronFiredEntry struct {
	name string
	hook CronFired
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobDispatched     []jobDispatchedEntry
	jobCompleted      []jobCompletedEntry
	jobFailed         []jobFailedEntry
	jobSoftTimeout    []jobSoftTimeoutEntry
	jobHardTimeout    []jobHardTimeoutEntry
	workerStarted     []workerStartedEntry
	workerRecycled    []workerRecycledEntry
	scaleDecision     []scaleDecisionEntry
	memoryPressure    []memoryPressureEntry
	alertRaised       []alertRaisedEntry
	alertAcknowledged []alertAcknowledgedEntry
	cronFired         []cronFiredEntry
	shutdown          []shutdownEntry
}

// Compile-time check: the registry doubles as the alert engine's
// emitter.
var _ alert.Emitter = (*Registry)(nil)

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobDispatched); ok {
		r.jobDispatched = append(r.jobDispatched, jobDispatchedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobSoftTimeout); ok {
		r.jobSoftTimeout = append(r.jobSoftTimeout, jobSoftTimeoutEntry{name, h})
	}
	if h, ok := e.(JobHardTimeout); ok {
		r.jobHardTimeout = append(r.jobHardTimeout, jobHardTimeoutEntry{name, h})
	}
	if h, ok := e.(WorkerStarted); ok {
		r.workerStarted = append(r.workerStarted, workerStartedEntry{name, h})
	}
	if h, ok := e.(WorkerRecycled); ok {
		r.workerRecycled = append(r.workerRecycled, workerRecycledEntry{name, h})
	}
	if h, ok := e.(ScaleDecision); ok {
		r.scaleDecision = append(r.scaleDecision, scaleDecisionEntry{name, h})
	}
	if h, ok := e.(MemoryPressure); ok {
		r.memoryPressure = append(r.memoryPressure, memoryPressureEntry{name, h})
	}
	if h, ok := e.(AlertRaised); ok {
		r.alertRaised = append(r.alertRaised, alertRaisedEntry{name, h})
	}
	if h, ok := e.(AlertAcknowledged); ok {
		r.alertAcknowledged = append(r.alertAcknowledged, alertAcknowledgedEntry{name, h})
	}
	if h, ok := e.(CronFired); ok {
		r.cronFired = append(r.cronFired, cronFiredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobDispatched notifies all extensions that implement JobDispatched.
func (r *Registry) EmitJobDispatched(ctx context.Context, j *job.Job, workerID id.WorkerID) {
	for _, e := range r.jobDispatched {
		if err := e.hook.OnJobDispatched(ctx, j, workerID); err != nil {
			r.logHookError("OnJobDispatched", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobSoftTimeout notifies all extensions that implement JobSoftTimeout.
func (r *Registry) EmitJobSoftTimeout(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobSoftTimeout {
		if err := e.hook.OnJobSoftTimeout(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobSoftTimeout", e.name, err)
		}
	}
}

// EmitJobHardTimeout notifies all extensions that implement JobHardTimeout.
func (r *Registry) EmitJobHardTimeout(ctx context.Context, j *job.Job, deadline time.Duration) {
	for _, e := range r.jobHardTimeout {
		if err := e.hook.OnJobHardTimeout(ctx, j, deadline); err != nil {
			r.logHookError("OnJobHardTimeout", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Worker event emitters
// ──────────────────────────────────────────────────

// EmitWorkerStarted notifies all extensions that implement WorkerStarted.
func (r *Registry) EmitWorkerStarted(ctx context.Context, workerID id.WorkerID, queueName string) {
	for _, e := range r.workerStarted {
		if err := e.hook.OnWorkerStarted(ctx, workerID, queueName); err != nil {
			r.logHookError("OnWorkerStarted", e.name, err)
		}
	}
}

// EmitWorkerRecycled notifies all extensions that implement WorkerRecycled.
func (r *Registry) EmitWorkerRecycled(ctx context.Context, workerID id.WorkerID, queueName, reason string) {
	for _, e := range r.workerRecycled {
		if err := e.hook.OnWorkerRecycled(ctx, workerID, queueName, reason); err != nil {
			r.logHookError("OnWorkerRecycled", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Scaling and resource emitters
// ──────────────────────────────────────────────────

// EmitScaleDecision notifies all extensions that implement ScaleDecision.
func (r *Registry) EmitScaleDecision(ctx context.Context, queueName string, from, to int, direction string) {
	for _, e := range r.scaleDecision {
		if err := e.hook.OnScaleDecision(ctx, queueName, from, to, direction); err != nil {
			r.logHookError("OnScaleDecision", e.name, err)
		}
	}
}

// EmitMemoryPressure notifies all extensions that implement MemoryPressure.
func (r *Registry) EmitMemoryPressure(ctx context.Context, workerID id.WorkerID, queueName string, status memmon.Status, usedMB float64) {
	for _, e := range r.memoryPressure {
		if err := e.hook.OnMemoryPressure(ctx, workerID, queueName, status, usedMB); err != nil {
			r.logHookError("OnMemoryPressure", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Alert event emitters
// ──────────────────────────────────────────────────

// EmitAlertRaised notifies all extensions that implement AlertRaised.
func (r *Registry) EmitAlertRaised(ctx context.Context, a *alert.Alert) {
	for _, e := range r.alertRaised {
		if err := e.hook.OnAlertRaised(ctx, a); err != nil {
			r.logHookError("OnAlertRaised", e.name, err)
		}
	}
}

// EmitAlertAcknowledged notifies all extensions that implement AlertAcknowledged.
func (r *Registry) EmitAlertAcknowledged(ctx context.Context, a *alert.Alert) {
	for _, e := range r.alertAcknowledged {
		if err := e.hook.OnAlertAcknowledged(ctx, a); err != nil {
			r.logHookError("OnAlertAcknowledged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Cron event emitters
// ──────────────────────────────────────────────────

// EmitCronFired notifies all extensions that implement CronFired.
func (r *Registry) EmitCronFired(ctx context.Context, scheduleName string, jobID id.JobID) {
	for _, e := range r.cronFired {
		if err := e.hook.OnCronFired(ctx, scheduleName, jobID); err != nil {
			r.logHookError("OnCronFired", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Engine event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.JobDispatched     = (*Extension)(nil)
	_ ext.JobCompleted      = (*Extension)(nil)
	_ ext.JobFailed         = (*Extension)(nil)
	_ ext.JobSoftTimeout    = (*Extension)(nil)
	_ ext.JobHardTimeout    = (*Extension)(nil)
	_ ext.WorkerStarted     = (*Extension)(nil)
	_ ext.WorkerRecycled    = (*Extension)(nil)
	_ ext.ScaleDecision     = (*Extension)(nil)
	_ ext.MemoryPressure    = (*Extension)(nil)
	_ ext.AlertRaised       = (*Extension)(nil)
	_ ext.AlertAcknowledged = (*Extension)(nil)
	_ ext.CronFired         = (*Extension)(nil)
)

// Recorder is the interface audit backends must implement. It is
// defined locally so callers inject their concrete audit client at
// wiring time without this package depending on it.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Event is one audited governance action.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges governor lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured event through the
// [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{recorder: r}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobDispatched implements ext.JobDispatched.
func (e *Extension) OnJobDispatched(ctx context.Context, j *job.Job, workerID id.WorkerID) error {
	return e.record(ctx, ActionJobDispatched, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_name", j.Name,
		"queue", j.Queue,
		"worker_id", workerID.String(),
	)
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_name", j.Name,
		"queue", j.Queue,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr,
		"job_name", j.Name,
		"queue", j.Queue,
	)
}

// OnJobSoftTimeout implements ext.JobSoftTimeout.
func (e *Extension) OnJobSoftTimeout(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobSoftTimeout, SeverityWarning, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_name", j.Name,
		"queue", j.Queue,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobHardTimeout implements ext.JobHardTimeout.
func (e *Extension) OnJobHardTimeout(ctx context.Context, j *job.Job, deadline time.Duration) error {
	return e.record(ctx, ActionJobHardTimeout, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_name", j.Name,
		"queue", j.Queue,
		"deadline_ms", deadline.Milliseconds(),
	)
}

// ── Worker lifecycle hooks ──────────────────────────

// OnWorkerStarted implements ext.WorkerStarted.
func (e *Extension) OnWorkerStarted(ctx context.Context, workerID id.WorkerID, queueName string) error {
	return e.record(ctx, ActionWorkerStarted, SeverityInfo, OutcomeSuccess,
		ResourceWorker, workerID.String(), CategoryWorker, nil,
		"queue", queueName,
	)
}

// OnWorkerRecycled implements ext.WorkerRecycled.
func (e *Extension) OnWorkerRecycled(ctx context.Context, workerID id.WorkerID, queueName, reason string) error {
	return e.record(ctx, ActionWorkerRecycled, SeverityInfo, OutcomeSuccess,
		ResourceWorker, workerID.String(), CategoryWorker, nil,
		"queue", queueName,
		"reason", reason,
	)
}

// ── Scaling and resource hooks ──────────────────────

// OnScaleDecision implements ext.ScaleDecision.
func (e *Extension) OnScaleDecision(ctx context.Context, queueName string, from, to int, direction string) error {
	return e.record(ctx, ActionScaleDecision, SeverityInfo, OutcomeSuccess,
		ResourceQueue, queueName, CategoryScale, nil,
		"from", from,
		"to", to,
		"direction", direction,
	)
}

// OnMemoryPressure implements ext.MemoryPressure.
func (e *Extension) OnMemoryPressure(ctx context.Context, workerID id.WorkerID, queueName string, status memmon.Status, usedMB float64) error {
	sev := SeverityWarning
	if status == memmon.ExceedsCritical {
		sev = SeverityCritical
	}
	return e.record(ctx, ActionMemoryPressure, sev, OutcomeFailure,
		ResourceWorker, workerID.String(), CategoryWorker, nil,
		"queue", queueName,
		"status", status.String(),
		"used_mb", usedMB,
	)
}

// ── Alert hooks ─────────────────────────────────────

// OnAlertRaised implements ext.AlertRaised.
func (e *Extension) OnAlertRaised(ctx context.Context, a *alert.Alert) error {
	return e.record(ctx, ActionAlertRaised, string(a.Severity), OutcomeFailure,
		ResourceAlert, a.ID.String(), CategoryAlert, nil,
		"queue", a.Queue,
		"type", string(a.Type),
		"value", a.Value,
		"threshold", a.Threshold,
	)
}

// OnAlertAcknowledged implements ext.AlertAcknowledged.
func (e *Extension) OnAlertAcknowledged(ctx context.Context, a *alert.Alert) error {
	return e.record(ctx, ActionAlertAcknowledged, SeverityInfo, OutcomeSuccess,
		ResourceAlert, a.ID.String(), CategoryAlert, nil,
		"queue", a.Queue,
		"type", string(a.Type),
		"acknowledged_by", a.AcknowledgedBy,
	)
}

// ── Cron hooks ──────────────────────────────────────

// OnCronFired implements ext.CronFired.
func (e *Extension) OnCronFired(ctx context.Context, scheduleName string, jobID id.JobID) error {
	return e.record(ctx, ActionCronFired, SeverityInfo, OutcomeSuccess,
		ResourceCron, scheduleName, CategoryCron, nil,
		"job_id", jobID.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	return e.recorder.Record(ctx, &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	})
}

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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
	_ ext.JobCompleted      = (*Extension)(nil)
	_ ext.JobFailed         = (*Extension)(nil)
	_ ext.JobHardTimeout    = (*Extension)(nil)
	_ ext.WorkerRecycled    = (*Extension)(nil)
	_ ext.ScaleDecision     = (*Extension)(nil)
	_ ext.MemoryPressure    = (*Extension)(nil)
	_ ext.AlertRaised       = (*Extension)(nil)
	_ ext.AlertAcknowledged = (*Extension)(nil)
	_ ext.CronFired         = (*Extension)(nil)
)

// Envelope is the JSON body delivered for every event.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Extension posts lifecycle events to a single HTTP endpoint.
type Extension struct {
	endpoint string
	client   *http.Client
	headers  map[string]string
	enabled  map[string]bool // nil = all enabled
	now      func() time.Time
}

// New creates an Extension delivering to the given endpoint.
func New(endpoint string, opts ...Option) *Extension {
	e := &Extension{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "webhook" }

// jobPayload is the wire form of a job reference.
type jobPayload struct {
	JobID   string `json:"job_id"`
	JobName string `json:"job_name"`
	Queue   string `json:"queue"`
}

func newJobPayload(j *job.Job) jobPayload {
	return jobPayload{JobID: j.ID.String(), JobName: j.Name, Queue: j.Queue}
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.send(ctx, EventJobCompleted, struct {
		jobPayload
		ElapsedMs int64 `json:"elapsed_ms"`
	}{newJobPayload(j), elapsed.Milliseconds()})
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.send(ctx, EventJobFailed, struct {
		jobPayload
		Error string `json:"error"`
	}{newJobPayload(j), jobErr.Error()})
}

// OnJobHardTimeout implements ext.JobHardTimeout.
func (e *Extension) OnJobHardTimeout(ctx context.Context, j *job.Job, deadline time.Duration) error {
	return e.send(ctx, EventJobHardTimeout, struct {
		jobPayload
		DeadlineMs int64 `json:"deadline_ms"`
	}{newJobPayload(j), deadline.Milliseconds()})
}

// ── Worker and scaling hooks ────────────────────────

// OnWorkerRecycled implements ext.WorkerRecycled.
func (e *Extension) OnWorkerRecycled(ctx context.Context, workerID id.WorkerID, queueName, reason string) error {
	return e.send(ctx, EventWorkerRecycled, map[string]any{
		"worker_id": workerID.String(),
		"queue":     queueName,
		"reason":    reason,
	})
}

// OnScaleDecision implements ext.ScaleDecision.
func (e *Extension) OnScaleDecision(ctx context.Context, queueName string, from, to int, direction string) error {
	return e.send(ctx, EventScaleDecision, map[string]any{
		"queue":     queueName,
		"from":      from,
		"to":        to,
		"direction": direction,
	})
}

// OnMemoryPressure implements ext.MemoryPressure.
func (e *Extension) OnMemoryPressure(ctx context.Context, workerID id.WorkerID, queueName string, status memmon.Status, usedMB float64) error {
	return e.send(ctx, EventMemoryPressure, map[string]any{
		"worker_id": workerID.String(),
		"queue":     queueName,
		"status":    status.String(),
		"used_mb":   usedMB,
	})
}

// ── Alert hooks ─────────────────────────────────────

// OnAlertRaised implements ext.AlertRaised.
func (e *Extension) OnAlertRaised(ctx context.Context, a *alert.Alert) error {
	return e.send(ctx, EventAlertRaised, a)
}

// OnAlertAcknowledged implements ext.AlertAcknowledged.
func (e *Extension) OnAlertAcknowledged(ctx context.Context, a *alert.Alert) error {
	return e.send(ctx, EventAlertAcknowledged, a)
}

// ── Cron hooks ──────────────────────────────────────

// OnCronFired implements ext.CronFired.
func (e *Extension) OnCronFired(ctx context.Context, scheduleName string, jobID id.JobID) error {
	return e.send(ctx, EventCronFired, map[string]any{
		"schedule": scheduleName,
		"job_id":   jobID.String(),
	})
}

// ── Delivery ────────────────────────────────────────

func (e *Extension) send(ctx context.Context, eventType string, data any) error {
	if e.enabled != nil && !e.enabled[eventType] {
		return nil
	}

	body, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: e.now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal %s: %w", eventType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver %s: %w", eventType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: deliver %s: endpoint returned %d", eventType, resp.StatusCode)
	}
	return nil
}

package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
)

// meterName is the instrumentation scope name for governor metrics.
const meterName = "github.com/queueworks/governor/observability"

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.JobDispatched     = (*MetricsExtension)(nil)
	_ ext.JobCompleted      = (*MetricsExtension)(nil)
	_ ext.JobFailed         = (*MetricsExtension)(nil)
	_ ext.JobSoftTimeout    = (*MetricsExtension)(nil)
	_ ext.JobHardTimeout    = (*MetricsExtension)(nil)
	_ ext.WorkerStarted     = (*MetricsExtension)(nil)
	_ ext.WorkerRecycled    = (*MetricsExtension)(nil)
	_ ext.ScaleDecision     = (*MetricsExtension)(nil)
	_ ext.MemoryPressure    = (*MetricsExtension)(nil)
	_ ext.AlertRaised       = (*MetricsExtension)(nil)
	_ ext.AlertAcknowledged = (*MetricsExtension)(nil)
	_ ext.CronFired         = (*MetricsExtension)(nil)
)

// MetricsExtension records engine-wide lifecycle metrics. Register it
// with the extension registry to track dispatch rates, completion
// latency, failure and timeout counts, recycles, scaling activity,
// memory pressure events, alert volume, and cron fires.
type MetricsExtension struct {
	dispatched     metric.Int64Counter
	completed      metric.Int64Counter
	failed         metric.Int64Counter
	timeouts       metric.Int64Counter
	processingTime metric.Float64Histogram

	workersStarted  metric.Int64Counter
	workersRecycled metric.Int64Counter

	scaleDecisions metric.Int64Counter
	memoryPressure metric.Int64Counter

	alertsRaised metric.Int64Counter
	alertsAcked  metric.Int64Counter

	cronFired metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject an sdkmetric provider in
// tests.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// The OTel API guarantees noop instruments on error, so instrument
	// creation failures never disable the extension.
	m.dispatched, _ = meter.Int64Counter("governor.jobs.dispatched",
		metric.WithDescription("Jobs handed to workers"),
		metric.WithUnit("{job}"))
	m.completed, _ = meter.Int64Counter("governor.jobs.completed",
		metric.WithDescription("Jobs that finished successfully"),
		metric.WithUnit("{job}"))
	m.failed, _ = meter.Int64Counter("governor.jobs.failed",
		metric.WithDescription("Jobs whose handler returned an error"),
		metric.WithUnit("{job}"))
	m.timeouts, _ = meter.Int64Counter("governor.jobs.timeouts",
		metric.WithDescription("Soft and hard deadline crossings"),
		metric.WithUnit("{timeout}"))
	m.processingTime, _ = meter.Float64Histogram("governor.jobs.processing_time",
		metric.WithDescription("Job completion time in seconds"),
		metric.WithUnit("s"))

	m.workersStarted, _ = meter.Int64Counter("governor.workers.started",
		metric.WithDescription("Worker goroutines spun up"),
		metric.WithUnit("{worker}"))
	m.workersRecycled, _ = meter.Int64Counter("governor.workers.recycled",
		metric.WithDescription("Workers retired and replaced"),
		metric.WithUnit("{worker}"))

	m.scaleDecisions, _ = meter.Int64Counter("governor.scale.decisions",
		metric.WithDescription("Autoscaler changes to desired worker counts"),
		metric.WithUnit("{decision}"))
	m.memoryPressure, _ = meter.Int64Counter("governor.memory.pressure_events",
		metric.WithDescription("Worker memory threshold crossings"),
		metric.WithUnit("{event}"))

	m.alertsRaised, _ = meter.Int64Counter("governor.alerts.raised",
		metric.WithDescription("Alerts raised or escalated"),
		metric.WithUnit("{alert}"))
	m.alertsAcked, _ = meter.Int64Counter("governor.alerts.acknowledged",
		metric.WithDescription("Alerts acknowledged by operators"),
		metric.WithUnit("{alert}"))

	m.cronFired, _ = meter.Int64Counter("governor.cron.fired",
		metric.WithDescription("Cron schedules that enqueued a job"),
		metric.WithUnit("{fire}"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobDispatched implements ext.JobDispatched.
func (m *MetricsExtension) OnJobDispatched(ctx context.Context, j *job.Job, _ id.WorkerID) error {
	m.dispatched.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", j.Queue),
	))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	attrs := metric.WithAttributes(
		attribute.String("queue", j.Queue),
		attribute.String("job_name", j.Name),
	)
	m.completed.Add(ctx, 1, attrs)
	m.processingTime.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", j.Queue),
		attribute.String("job_name", j.Name),
	))
	return nil
}

// OnJobSoftTimeout implements ext.JobSoftTimeout.
func (m *MetricsExtension) OnJobSoftTimeout(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.timeouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", j.Queue),
		attribute.String("kind", "soft"),
	))
	return nil
}

// OnJobHardTimeout implements ext.JobHardTimeout.
func (m *MetricsExtension) OnJobHardTimeout(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.timeouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", j.Queue),
		attribute.String("kind", "hard"),
	))
	return nil
}

// ── Worker lifecycle hooks ──────────────────────────

// OnWorkerStarted implements ext.WorkerStarted.
func (m *MetricsExtension) OnWorkerStarted(ctx context.Context, _ id.WorkerID, queueName string) error {
	m.workersStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queueName),
	))
	return nil
}

// OnWorkerRecycled implements ext.WorkerRecycled.
func (m *MetricsExtension) OnWorkerRecycled(ctx context.Context, _ id.WorkerID, queueName, reason string) error {
	m.workersRecycled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queueName),
		attribute.String("reason", reason),
	))
	return nil
}

// ── Scaling and resource hooks ──────────────────────

// OnScaleDecision implements ext.ScaleDecision.
func (m *MetricsExtension) OnScaleDecision(ctx context.Context, queueName string, _, _ int, direction string) error {
	m.scaleDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queueName),
		attribute.String("direction", direction),
	))
	return nil
}

// OnMemoryPressure implements ext.MemoryPressure.
func (m *MetricsExtension) OnMemoryPressure(ctx context.Context, _ id.WorkerID, queueName string, status memmon.Status, _ float64) error {
	m.memoryPressure.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queueName),
		attribute.String("status", status.String()),
	))
	return nil
}

// ── Alert hooks ─────────────────────────────────────

// OnAlertRaised implements ext.AlertRaised.
func (m *MetricsExtension) OnAlertRaised(ctx context.Context, a *alert.Alert) error {
	m.alertsRaised.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", a.Queue),
		attribute.String("type", string(a.Type)),
		attribute.String("severity", string(a.Severity)),
	))
	return nil
}

// OnAlertAcknowledged implements ext.AlertAcknowledged.
func (m *MetricsExtension) OnAlertAcknowledged(ctx context.Context, a *alert.Alert) error {
	m.alertsAcked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", a.Queue),
		attribute.String("type", string(a.Type)),
	))
	return nil
}

// ── Cron hooks ──────────────────────────────────────

// OnCronFired implements ext.CronFired.
func (m *MetricsExtension) OnCronFired(ctx context.Context, scheduleName string, _ id.JobID) error {
	m.cronFired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("schedule", scheduleName),
	))
	return nil
}

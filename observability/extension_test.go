package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
	"github.com/queueworks/governor/observability"
)

func setupExtension(t *testing.T) (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s: expected Sum[int64] data", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:    id.NewJobID(),
		Name:  "send-email",
		Queue: "email",
		State: job.StateRunning,
	}
}

func TestExtension_Name(t *testing.T) {
	ext, _ := setupExtension(t)
	if ext.Name() != "observability-metrics" {
		t.Fatalf("name = %q", ext.Name())
	}
}

func TestExtension_JobLifecycleCounters(t *testing.T) {
	ext, reader := setupExtension(t)
	ctx := context.Background()
	j := newTestJob()

	_ = ext.OnJobDispatched(ctx, j, id.NewWorkerID())
	_ = ext.OnJobDispatched(ctx, j, id.NewWorkerID())
	_ = ext.OnJobCompleted(ctx, j, 120*time.Millisecond)
	_ = ext.OnJobFailed(ctx, j, errors.New("boom"))

	rm := collectMetrics(t, reader)
	if got := counterValue(t, rm, "governor.jobs.dispatched"); got != 2 {
		t.Errorf("dispatched = %d, want 2", got)
	}
	if got := counterValue(t, rm, "governor.jobs.completed"); got != 1 {
		t.Errorf("completed = %d, want 1", got)
	}
	if got := counterValue(t, rm, "governor.jobs.failed"); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
}

func TestExtension_RecordsProcessingTime(t *testing.T) {
	ext, reader := setupExtension(t)
	j := newTestJob()

	_ = ext.OnJobCompleted(context.Background(), j, 250*time.Millisecond)

	rm := collectMetrics(t, reader)
	m := findMetric(rm, "governor.jobs.processing_time")
	if m == nil {
		t.Fatal("governor.jobs.processing_time not found")
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data")
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected histogram data points: %+v", hist.DataPoints)
	}
	if hist.DataPoints[0].Sum < 0.2 || hist.DataPoints[0].Sum > 0.3 {
		t.Errorf("sum = %f, want ~0.25", hist.DataPoints[0].Sum)
	}
}

func TestExtension_TimeoutsTaggedByKind(t *testing.T) {
	ext, reader := setupExtension(t)
	ctx := context.Background()
	j := newTestJob()

	_ = ext.OnJobSoftTimeout(ctx, j, 5*time.Second)
	_ = ext.OnJobHardTimeout(ctx, j, 30*time.Second)
	_ = ext.OnJobHardTimeout(ctx, j, 30*time.Second)

	rm := collectMetrics(t, reader)
	m := findMetric(rm, "governor.jobs.timeouts")
	if m == nil {
		t.Fatal("governor.jobs.timeouts not found")
	}
	sum := m.Data.(metricdata.Sum[int64])
	byKind := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(attribute.Key("kind")); found {
			byKind[v.AsString()] = dp.Value
		}
	}
	if byKind["soft"] != 1 || byKind["hard"] != 2 {
		t.Errorf("timeouts by kind = %v, want soft:1 hard:2", byKind)
	}
}

func TestExtension_WorkerAndScaleCounters(t *testing.T) {
	ext, reader := setupExtension(t)
	ctx := context.Background()

	_ = ext.OnWorkerStarted(ctx, id.NewWorkerID(), "email")
	_ = ext.OnWorkerRecycled(ctx, id.NewWorkerID(), "email", "job_count_exceeded")
	_ = ext.OnScaleDecision(ctx, "email", 4, 6, "up")
	_ = ext.OnMemoryPressure(ctx, id.NewWorkerID(), "email", memmon.ExceedsCritical, 1024)

	rm := collectMetrics(t, reader)
	if got := counterValue(t, rm, "governor.workers.started"); got != 1 {
		t.Errorf("workers started = %d, want 1", got)
	}
	if got := counterValue(t, rm, "governor.workers.recycled"); got != 1 {
		t.Errorf("workers recycled = %d, want 1", got)
	}
	if got := counterValue(t, rm, "governor.scale.decisions"); got != 1 {
		t.Errorf("scale decisions = %d, want 1", got)
	}

	m := findMetric(rm, "governor.memory.pressure_events")
	if m == nil {
		t.Fatal("governor.memory.pressure_events not found")
	}
	sum := m.Data.(metricdata.Sum[int64])
	v, found := sum.DataPoints[0].Attributes.Value(attribute.Key("status"))
	if !found || v.AsString() != "exceeds_critical" {
		t.Errorf("status attribute = %q, want exceeds_critical", v.AsString())
	}
}

func TestExtension_AlertAndCronCounters(t *testing.T) {
	ext, reader := setupExtension(t)
	ctx := context.Background()

	a := &alert.Alert{
		ID:       id.NewAlertID(),
		Queue:    "email",
		Type:     alert.TypeQueueDepth,
		Severity: alert.SeverityWarning,
	}
	_ = ext.OnAlertRaised(ctx, a)
	_ = ext.OnAlertAcknowledged(ctx, a)
	_ = ext.OnCronFired(ctx, "nightly-digest", id.NewJobID())

	rm := collectMetrics(t, reader)
	if got := counterValue(t, rm, "governor.alerts.raised"); got != 1 {
		t.Errorf("alerts raised = %d, want 1", got)
	}
	if got := counterValue(t, rm, "governor.alerts.acknowledged"); got != 1 {
		t.Errorf("alerts acknowledged = %d, want 1", got)
	}

	m := findMetric(rm, "governor.cron.fired")
	if m == nil {
		t.Fatal("governor.cron.fired not found")
	}
	sum := m.Data.(metricdata.Sum[int64])
	v, found := sum.DataPoints[0].Attributes.Value(attribute.Key("schedule"))
	if !found || v.AsString() != "nightly-digest" {
		t.Errorf("schedule attribute = %q, want nightly-digest", v.AsString())
	}
}

package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	mw "github.com/queueworks/governor/middleware"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
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

func TestMetrics_RecordsDuration(t *testing.T) {
	reader, mp := setupTestMeter()
	meter := mp.Meter("test")
	m := mw.MetricsWithMeter(meter)
	j := newTestJob()

	_ = m(context.Background(), j, func(_ context.Context) error {
		return nil
	})

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "governor.job.duration")
	if metric == nil {
		t.Fatal("governor.job.duration metric not found")
	}

	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(hist.DataPoints))
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("count = %d, want 1", hist.DataPoints[0].Count)
	}
}

func TestMetrics_CountsExecutionsByStatus(t *testing.T) {
	reader, mp := setupTestMeter()
	meter := mp.Meter("test")
	m := mw.MetricsWithMeter(meter)
	j := newTestJob()

	_ = m(context.Background(), j, func(_ context.Context) error { return nil })
	_ = m(context.Background(), j, func(_ context.Context) error { return errors.New("boom") })

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "governor.job.executions")
	if metric == nil {
		t.Fatal("governor.job.executions metric not found")
	}

	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected Sum[int64] data type")
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("expected 2 data points (ok + error), got %d", len(sum.DataPoints))
	}

	byStatus := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(attribute.Key("status")); found {
			byStatus[v.AsString()] = dp.Value
		}
	}
	if byStatus["ok"] != 1 {
		t.Errorf("ok executions = %d, want 1", byStatus["ok"])
	}
	if byStatus["error"] != 1 {
		t.Errorf("error executions = %d, want 1", byStatus["error"])
	}
}

func TestMetrics_QueueAttribute(t *testing.T) {
	reader, mp := setupTestMeter()
	meter := mp.Meter("test")
	m := mw.MetricsWithMeter(meter)
	j := newTestJob()

	_ = m(context.Background(), j, func(_ context.Context) error { return nil })

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "governor.job.executions")
	if metric == nil {
		t.Fatal("governor.job.executions metric not found")
	}
	sum := metric.Data.(metricdata.Sum[int64])
	v, found := sum.DataPoints[0].Attributes.Value(attribute.Key("queue"))
	if !found || v.AsString() != "email" {
		t.Errorf("queue attribute = %q, want email", v.AsString())
	}
}

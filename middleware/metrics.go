package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/queueworks/governor/job"
)

// meterName is the instrumentation scope for per-execution metrics.
const meterName = "github.com/queueworks/governor"

// Metrics records one histogram point and one counter increment per
// execution, tagged with job_name, queue, and status ("ok" or "error"):
//
//   - governor.job.duration (seconds)
//   - governor.job.executions
//
// It reads the global MeterProvider; without one configured the
// instruments are noops and the middleware is a pass-through.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter is Metrics with an injected meter, for tests or
// multi-provider setups.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once here and shared by every execution.
	// The OTel API returns working noops alongside any creation error,
	// so the errors are safe to ignore.
	duration, _ := meter.Float64Histogram(
		"governor.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"governor.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("job_name", j.Name),
			attribute.String("queue", j.Queue),
			attribute.String("status", status),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		executions.Add(ctx, 1, attrs)
		return err
	}
}

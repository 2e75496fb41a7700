package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/queueworks/governor/job"
)

// tracerName is the instrumentation scope for execution spans.
const tracerName = "github.com/queueworks/governor"

// Tracing wraps each execution in a "governor.job.execute" span carrying
// the job id, name, queue, and priority. Handler errors are recorded on
// the span and set its status to Error. It reads the global
// TracerProvider; without one configured the span is a noop.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an injected tracer, for tests or
// multi-provider setups.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "governor.job.execute",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("governor.job.id", j.ID.String()),
				attribute.String("governor.job.name", j.Name),
				attribute.String("governor.queue", j.Queue),
				attribute.Int("governor.priority", j.Priority),
			),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
}

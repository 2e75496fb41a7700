package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/queueworks/governor/job"
)

// Logging logs one line at job start and one at the outcome, with the
// elapsed wall time. Failures log at Error with the handler's error.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		l := logger.With(
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("queue", j.Queue),
		)
		l.Info("job started", slog.Int("priority", j.Priority))

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			l.Error("job failed",
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			return err
		}
		l.Info("job completed", slog.Duration("elapsed", elapsed))
		return nil
	}
}

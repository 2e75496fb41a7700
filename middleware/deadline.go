package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/queueworks/governor/job"
)

// DeadlineResolver returns the soft and hard execution deadlines for a
// queue. The timeout tracker's Deadlines method satisfies this.
type DeadlineResolver func(queueName string) (soft, hard time.Duration)

// HardDeadline returns middleware that bounds the handler context at
// the queue's hard deadline. Cooperative handlers observe ctx.Done and
// return context.DeadlineExceeded; handlers that ignore the context are
// abandoned by the executor instead.
func HardDeadline(logger *slog.Logger, resolve DeadlineResolver) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		soft, hard := resolve(j.Queue)
		if hard <= 0 {
			return next(ctx)
		}
		logger.Debug("job deadlines set",
			slog.String("job_id", j.ID.String()),
			slog.String("queue", j.Queue),
			slog.Duration("soft", soft),
			slog.Duration("hard", hard),
		)
		ctx, cancel := context.WithTimeout(ctx, hard)
		defer cancel()
		return next(ctx)
	}
}

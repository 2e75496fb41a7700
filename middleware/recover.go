package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/queueworks/governor/job"
)

// Recover converts handler panics into ordinary errors so one bad job
// cannot take down its worker. The stack is captured at panic time and
// logged before the error is returned up the chain.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("job handler panicked",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
				slog.String("queue", j.Queue),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic in job %s: %v", j.Name, r)
		}()
		return next(ctx)
	}
}

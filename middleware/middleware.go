package middleware

import (
	"context"

	"github.com/queueworks/governor/job"
)

// Handler is the terminal function that runs the job's logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting behavior. It may
// short-circuit by returning without calling next.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain folds mws into one Middleware. The first element is the
// outermost wrapper, so Chain(a, b)(h) runs a, then b, then h.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw, inner := mws[i], h
			h = func(ctx context.Context) error {
				return mw(ctx, j, inner)
			}
		}
		return h(ctx)
	}
}

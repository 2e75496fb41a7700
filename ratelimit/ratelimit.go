package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed reports whether the request fits the budget. The request
	// is already counted when true.
	Allowed bool

	// Remaining is the budget left in the sliding window after this
	// decision, never negative.
	Remaining int

	// ResetAt is when the current window ends, the earliest time a
	// denied caller could plausibly be admitted again.
	ResetAt time.Time
}

// Limiter enforces a maximum request rate per named resource.
// Implementations must be safe under concurrent callers.
type Limiter interface {
	// TryAcquire spends one unit of key's budget if the sliding window
	// allows it. limit and window define the budget; they travel with
	// the call so different queues may bind different budgets to the
	// same store.
	TryAcquire(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

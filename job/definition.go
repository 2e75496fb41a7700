package job

import "context"

// Definition is a typed job definition with a handler function.
// T is the payload type (must be JSON-serializable).
type Definition[T any] struct {
	// Name is the unique identifier for this job type.
	Name string

	// Queue is the queue this job type belongs to. Empty means "default".
	Queue string

	// Handler processes the decoded payload. It must poll ctx: the
	// hard-timeout path cancels it before the worker is terminated.
	Handler func(ctx context.Context, payload T) error
}

// NewDefinition creates a typed job definition bound to a queue.
func NewDefinition[T any](name, queue string, handler func(ctx context.Context, payload T) error) *Definition[T] {
	return &Definition[T]{Name: name, Queue: queue, Handler: handler}
}

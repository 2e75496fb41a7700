package dlq

import (
	"context"
	"time"

	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
)

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store   Store
	backend backend.Backend
}

// NewService creates a DLQ service. The backend is used by Replay to
// re-enqueue entries as fresh jobs.
func NewService(store Store, be backend.Backend) *Service {
	return &Service{store: store, backend: be}
}

// Push builds a DLQ Entry from a terminally failed job and persists it.
// The error string is captured from the original handler error; cause
// may be nil for hard timeouts where no error value exists.
func (s *Service) Push(ctx context.Context, j *job.Job, reason job.FailureReason, cause error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:        id.NewDLQID(),
		JobID:     j.ID,
		JobName:   j.Name,
		Queue:     j.Queue,
		Payload:   j.Payload,
		Priority:  j.Priority,
		Reason:    reason,
		FailedAt:  now,
		CreatedAt: now,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	return s.store.PushDLQ(ctx, entry)
}

// Store returns the underlying DLQ store for direct access to List,
// Get, Purge, and Count operations.
func (s *Service) Store() Store {
	return s.store
}

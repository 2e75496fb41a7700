package dlq

import (
	"context"
	"time"

	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
)

// Replay re-enqueues a DLQ entry as a new pending job and marks the
// entry as replayed. The new job gets a fresh ID, a clean failure
// state, and the original priority.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	j := &job.Job{
		ID:         id.NewJobID(),
		Name:       entry.JobName,
		Queue:      entry.Queue,
		Payload:    entry.Payload,
		Priority:   entry.Priority,
		State:      job.StatePending,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := s.backend.Enqueue(ctx, j); err != nil {
		return nil, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The job is already enqueued. Return it along with the error.
		return j, err
	}

	return j, nil
}

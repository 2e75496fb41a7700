package dlq

import (
	"context"
	"time"

	"github.com/queueworks/governor/id"
)

// ListOpts filters and pages List queries. The zero value lists every
// entry, newest first.
type ListOpts struct {
	// Queue restricts results to one queue. Empty matches all queues.
	Queue string

	// Limit caps the result size; zero means unlimited.
	Limit int

	// Offset skips entries before the first returned one.
	Offset int
}

// Store persists dead-letter entries. The memory, redis, and bun stores
// all implement it; bun additionally keeps replayed entries as archive
// rows instead of deleting them.
type Store interface {
	// PushDLQ records a terminally failed job.
	PushDLQ(ctx context.Context, entry *Entry) error

	// GetDLQ returns one entry, or ErrDLQNotFound.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// ListDLQ returns entries matching opts.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// ReplayDLQ stamps an entry as replayed. Service.Replay performs
	// the re-enqueue; the store only tracks that it happened.
	ReplayDLQ(ctx context.Context, entryID id.DLQID) error

	// PurgeDLQ deletes entries that failed before the cutoff and
	// reports how many were removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ reports the total number of entries held.
	CountDLQ(ctx context.Context) (int64, error)
}

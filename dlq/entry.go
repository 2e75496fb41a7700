package dlq

import (
	"time"

	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
)

// Entry represents a job that failed terminally and was copied to the
// dead letter queue for inspection or replay.
type Entry struct {
	ID         id.DLQID          `json:"id"`
	JobID      id.JobID          `json:"job_id"`
	JobName    string            `json:"job_name"`
	Queue      string            `json:"queue"`
	Payload    []byte            `json:"payload"`
	Priority   int               `json:"priority"`
	Reason     job.FailureReason `json:"reason"`
	Error      string            `json:"error"`
	FailedAt   time.Time         `json:"failed_at"`
	ReplayedAt *time.Time        `json:"replayed_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

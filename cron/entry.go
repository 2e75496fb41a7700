package cron

import (
	"time"

	"github.com/queueworks/governor/id"
)

// Entry is a recurring enqueue schedule. On each due tick the scheduler
// enqueues a job with the entry's name, queue, and payload.
type Entry struct {
	ID        id.CronID  `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	JobName   string     `json:"job_name"`
	Queue     string     `json:"queue"`
	Priority  int        `json:"priority,omitempty"`
	Payload   []byte     `json:"payload,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
}

// Due reports whether the entry should fire as of now.
func (e *Entry) Due(now time.Time) bool {
	return e.Enabled && e.NextRunAt != nil && !e.NextRunAt.After(now)
}

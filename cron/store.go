package cron

import (
	"context"

	"github.com/queueworks/governor/id"
)

// Store is the persistence contract for cron entries.
type Store interface {
	// RegisterCron persists a new cron entry. Fails when an entry with
	// the same name already exists.
	RegisterCron(ctx context.Context, entry *Entry) error

	// GetCron retrieves a cron entry by ID.
	GetCron(ctx context.Context, entryID id.CronID) (*Entry, error)

	// ListCrons returns all cron entries.
	ListCrons(ctx context.Context) ([]*Entry, error)

	// UpdateCron replaces a cron entry's mutable fields (Enabled,
	// LastRunAt, NextRunAt, Payload).
	UpdateCron(ctx context.Context, entry *Entry) error

	// DeleteCron removes a cron entry by ID.
	DeleteCron(ctx context.Context, entryID id.CronID) error
}

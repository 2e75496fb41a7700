package store

import (
	"context"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/cluster"
	"github.com/queueworks/governor/cron"
	"github.com/queueworks/governor/dlq"
)

// Store is the aggregate persistence interface. Each subsystem defines
// its own store contract; a single backend implements all of them.
type Store interface {
	backend.Backend
	alert.Store
	dlq.Store
	cron.Store
	cluster.Store

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

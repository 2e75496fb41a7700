// Package redis implements the composite store interface on Redis for
// multi-node deployments. Pending jobs live in Sorted Sets ordered by
// priority then enqueue time; other entities are stored as JSON values
// with Set indexes for enumeration. The package also implements
// metrics.Mirror so dashboards on other hosts can read recent samples.
//
// The caller owns the Redis client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/cluster"
	"github.com/queueworks/governor/cron"
	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/metrics"
)

// Compile-time interface checks.
var (
	_ backend.Backend = (*Store)(nil)
	_ alert.Store     = (*Store)(nil)
	_ dlq.Store       = (*Store)(nil)
	_ cron.Store      = (*Store)(nil)
	_ cluster.Store   = (*Store)(nil)
	_ metrics.Mirror  = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMirrorDepth bounds how many metric samples are kept per queue.
func WithMirrorDepth(n int) Option {
	return func(s *Store) { s.mirrorDepth = n }
}

// Store implements the composite store interface backed by Redis.
type Store struct {
	client      goredis.Cmdable
	logger      *slog.Logger
	mirrorDepth int
}

// New creates a Redis-backed store. The caller owns the client
// lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:      client,
		logger:      slog.Default(),
		mirrorDepth: 1024,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op. The caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// Package store defines the aggregate persistence interface.
//
// Each subsystem (queue backend, alerts, dead letter queue, cron,
// cluster) defines its own store contract. The composite [Store]
// composes them all, so a single backend satisfies every subsystem at
// once.
//
// # Available backends
//
//   - store/memory: in-memory store for development, testing, and
//     single-process deployments
//   - store/redis: Redis backend for multi-node deployments; also the
//     default metrics mirror
//   - store/bun: relational archive (Postgres via Bun) for alerts,
//     dead letters, and metrics history; not a queue backend
//
// # Usage
//
//	import "github.com/queueworks/governor/store/redis"
//
//	s := redis.New(redisClient)
//	defer s.Close()
//
//	eng, err := engine.New(engine.WithStore(s))
package store

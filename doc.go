// Package governor provides a scaling and resource-governance layer for
// fleets of named background-job queues. It coordinates priority-tiered
// dispatch across queues, per-queue worker pools with memory-bounded
// recycling, adaptive execution timeouts, distributed rate limiting, and
// a closed-loop autoscaler driven by live queue metrics.
//
// Governor is designed as a library, not a service. Import it, plug in a
// durable queue backend, register job handlers, and start the engine.
// The business logic inside jobs, the durable queue storage, and the
// dashboard layer are all external collaborators; this module owns only
// the capacity and health management between them.
//
// # Quick Start
//
//	g, err := governor.New(governor.WithStore(memory.New()))
//	eng, err := engine.Build(g,
//	    engine.WithQueues(queue.Config{Name: "email", Tier: queue.TierHigh, MinWorkers: 2, MaxWorkers: 16}),
//	)
//	engine.Register(eng, job.NewDefinition("send-email", "email", sendEmail))
//	err = eng.Start(ctx)
//
// # Architecture
//
// Each subsystem (queue registry, metrics store, rate limiter, memory
// monitor, timeout tracker, worker pools, scheduler, autoscaler, alert
// engine) is its own package with a narrow interface. The engine package
// wires them together and supervises their loops. Stores follow a
// composable pattern: each subsystem defines its own store interface and
// a single backend (memory, Redis, Postgres via bun) implements them.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package governor

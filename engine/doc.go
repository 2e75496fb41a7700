// Package engine wires all governor subsystems together: queue
// registry, worker pools, tiered scheduler, autoscaler, memory monitor,
// alert engine, dead letter service, cron scheduler, and optional
// cluster membership.
//
// This package exists to break import cycles: the root governor package
// defines Config and the lifecycle coordinator (imported by subsystem
// packages), so it cannot import those packages back. The engine
// package sits above every subsystem and below the application layer.
//
// Typical usage:
//
//	g, _ := governor.New(governor.WithStore(memory.New()))
//	eng, err := engine.Build(g,
//	    engine.WithQueues(
//	        queue.Config{Name: "email", Tier: queue.TierHigh, MinWorkers: 2, MaxWorkers: 16},
//	    ),
//	)
//	engine.Register(eng, job.NewDefinition("send-email", "email", sendEmail))
//	err = eng.Start(ctx)
package engine

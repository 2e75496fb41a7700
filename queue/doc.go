// Package queue defines per-queue governance policy and the registry
// that resolves it.
//
// A queue is a named class of jobs with its own priority tier,
// concurrency bounds, memory limits, and recycle thresholds. Policy is
// carried by [Config] and registered with a [Registry]; the scheduler,
// worker pools, autoscaler, and alert engine all resolve policy through
// the registry once per tick rather than reading scattered constants.
//
// # Priority Tiers
//
// Tiers order queues for dispatch: lower number means higher priority.
//
//	queue.TierCritical   // 1
//	queue.TierHigh       // 3
//	queue.TierNormal     // 5
//	queue.TierLow        // 7
//	queue.TierBackground // 10
//
// # Hot Reload
//
// [Registry.SetConfig] atomically swaps a queue's policy. An external
// configuration loader can call it at any time; in-flight accounting is
// preserved across the swap. Queues are never deleted while jobs may
// still reference them; disable them instead with Config.Disabled.
package queue

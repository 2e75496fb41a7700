// Package ratelimit provides sliding-window admission control keyed by
// resource name, shared by every worker calling the same resource.
//
// The limiter is a pure accept/deny primitive: it never queues and
// never retries. Callers that are denied back off (the scheduler moves
// to the next candidate; job handlers apply their own backoff).
//
// Two implementations are provided. Memory is per-process, sharded to
// avoid contention, and suits single-host deployments and tests. Redis
// executes one Lua script per acquire, a single atomic round trip,
// so workers spanning hosts share the same budget.
//
// Both use the overlapping-window weighted count: requests in the
// previous window are weighted by how much of it still overlaps the
// sliding window, which avoids the classic double-burst at fixed-window
// boundaries.
package ratelimit

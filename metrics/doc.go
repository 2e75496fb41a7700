// Package metrics is the rolling-window metrics store every other
// subsystem reads and writes: per-queue counters, latency percentiles,
// and an append-only bounded history of point-in-time samples.
//
// Writers record completions, failures, and timeouts as they happen;
// the engine captures a full Sample per queue on each collection tick.
// The autoscaler and alert engine consume samples via Snapshot, History,
// and the Sustained hysteresis query. Retention is bounded by both age
// and sample count; eviction happens on append, never on read.
//
// All counter updates are lock-protected increments with no
// read-modify-write races; percentiles are computed on a copy so
// writers never block behind readers.
package metrics

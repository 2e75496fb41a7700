// Package autoscale converts observed queue pressure into desired
// worker counts.
//
// Each queue runs a small state machine: stable, scaling up, scaling
// down. A scale-up fires when queue depth stays above the high-water
// mark (or p95 latency above its ceiling) for a run of consecutive
// samples; a scale-down requires the queue drained and most workers
// idle for the same run. Every decision moves the desired count by a
// bounded step, clamped to the queue's [MinWorkers, MaxWorkers], and
// opens a cooldown window during which no further transition fires, so
// sustained pressure cannot stack increases.
package autoscale

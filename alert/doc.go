// Package alert evaluates threshold rules against queue metrics and
// owns the alert lifecycle: raise, deduplicate, acknowledge.
//
// One active (unacknowledged) alert exists per (queue, type) at a time.
// A repeated breach of the same condition updates the existing alert's
// value and timestamp instead of duplicating it; acknowledgment is
// terminal for that instance, and the next breach after acknowledgment
// creates a fresh alert. Alerts are the sole operator-facing failure
// signal, so every one carries the queue, metric type, observed value,
// and the threshold it crossed.
package alert

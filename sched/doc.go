// Package sched implements the priority dispatch loop.
//
// The scheduler drains the backend across queues in tier order, most
// critical first. Within a tier the queue with the highest pressure
// (waiting jobs per allocated worker) wins. A queue is skipped when it
// is disabled, has no idle worker, fails its local dispatch throttle,
// or is bound to a rate-limited resource whose window has not reset.
//
// The loop runs on a fixed tick and additionally wakes on backend
// enqueue notifications and on worker-freed events (see WakeExtension),
// so latency-sensitive queues are not bound to the tick interval.
package sched

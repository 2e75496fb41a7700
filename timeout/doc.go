// Package timeout bounds job execution time without a one-size-fits-all
// constant. A Tracker keeps a bounded ring of recent execution durations
// per queue and derives two deadlines from it: a soft deadline (p95 × a
// safety factor) that only signals, and a hard deadline (p99 × a larger
// factor) that forces worker termination. Queues without enough history
// fall back to conservative static defaults.
//
// Enforcement lives in the worker pool: soft breaches emit a warning
// and a timeout_rate signal while the job keeps running; hard breaches
// cancel the handler context and replace the worker.
package timeout

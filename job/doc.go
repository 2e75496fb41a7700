// Package job defines the job model shared across the governor: the Job
// record handed over by the durable queue backend, the transient
// Execution record that exists while a job is in flight, and the handler
// registry that maps job names to business-logic callables.
//
// Handlers are external collaborators. They receive a context that is
// cancelled on the hard-timeout and shutdown paths and are expected to
// poll it; the worker pool tolerates handlers that ignore cancellation
// by abandoning their execution goroutine and replacing the worker.
package job

// Package memmon observes memory usage per worker and process-wide and
// decides when workers must be recycled.
//
// Workers report their usage through Observe after each job; the
// Monitor also samples process memory (Go heap plus RSS where /proc is
// available) on a fixed interval or every N completed jobs, whichever
// comes first. Status derivation is a pure function of usage against a
// queue's soft and hard limits: a soft breach schedules a recycle at
// the next job boundary, a hard breach additionally escalates so the
// alert engine can raise a critical alert immediately. Neither ever
// interrupts a job mid-flight.
//
// Reporting both per-worker attribution and aggregate process memory
// lets operators tell a single leaking worker from systemic pressure.
package memmon

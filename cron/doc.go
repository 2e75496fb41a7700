// Package cron turns stored schedules into recurring enqueues.
//
// An [Entry] pairs a cron expression with a job name, target queue, and
// static payload. The [Scheduler] checks entries on a tick interval and
// enqueues a fresh job for every entry whose NextRunAt has passed, then
// advances NextRunAt from the parsed expression.
//
// Expressions use the standard 5-field syntax plus descriptors such as
// "@every 30s" and "@hourly".
//
// In a clustered deployment the scheduler is constructed with
// WithLeaderFunc so only the elected leader fires. Entries live in the
// store, not in process memory, so a leader handoff picks up exactly
// where the previous leader left off.
package cron

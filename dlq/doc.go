// Package dlq implements the dead letter queue: a durable record of
// jobs that failed terminally, kept for inspection and replay.
//
// The governor copies a job here when its handler fails or when it is
// killed at the hard deadline. Entries carry the failure reason and the
// original payload, so an operator can replay one as a fresh job after
// fixing the underlying cause.
package dlq

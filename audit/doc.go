// Package audit bridges governor lifecycle events to an audit trail.
// The Extension implements the ext hook interfaces and emits one
// structured AuditEvent per governance action (dispatches, failures,
// timeouts, recycles, scaling decisions, alerts, cron fires) through a
// caller-provided Recorder.
//
// The Recorder interface is defined locally so this package carries no
// dependency on any particular audit backend; bridge to yours with a
// RecorderFunc at wiring time.
package audit

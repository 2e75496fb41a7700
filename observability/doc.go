// Package observability exports governor lifecycle events as
// OpenTelemetry metrics. The MetricsExtension implements the ext hook
// interfaces and records counters and histograms for dispatches,
// completions, failures, timeouts, worker recycles, scaling decisions,
// memory pressure, alerts, and cron fires.
//
// For per-execution tracing and handler metrics, see the middleware
// package: middleware.Tracing() and middleware.Metrics().
package observability

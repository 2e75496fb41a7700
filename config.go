package governor

import "time"

// Config holds process-wide configuration for the Governor. Per-queue
// policy (priority tier, concurrency bounds, memory limits, recycle
// thresholds) lives in queue.Config and is resolved through the queue
// registry, not here.
type Config struct {
	// DispatchTick is the scheduler's idle tick interval. The dispatch
	// loop also wakes immediately on enqueue and worker-freed signals.
	DispatchTick time.Duration

	// AutoscaleTick is how often the autoscaler evaluates queue pressure.
	AutoscaleTick time.Duration

	// AlertTick is how often the alert engine evaluates thresholds.
	AlertTick time.Duration

	// MemorySampleInterval is the memory monitor's sampling interval.
	// Sampling also triggers every MemorySampleEveryJobs completed jobs,
	// whichever comes first.
	MemorySampleInterval  time.Duration
	MemorySampleEveryJobs int

	// ShutdownGrace bounds how long Stop waits for in-flight jobs before
	// force-terminating stragglers with failure reason "shutdown".
	ShutdownGrace time.Duration

	// MetricsRetention bounds how long metric samples are kept.
	MetricsRetention time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		DispatchTick:          250 * time.Millisecond,
		AutoscaleTick:         15 * time.Second,
		AlertTick:             10 * time.Second,
		MemorySampleInterval:  30 * time.Second,
		MemorySampleEveryJobs: 50,
		ShutdownGrace:         30 * time.Second,
		MetricsRetention:      7 * 24 * time.Hour,
	}
}

package governor

import "errors"

var (
	// Backend / store errors.
	ErrNoBackend   = errors.New("governor: no queue backend configured")
	ErrStoreClosed = errors.New("governor: store closed")

	// Not found errors.
	ErrQueueNotFound  = errors.New("governor: queue not found")
	ErrJobNotFound    = errors.New("governor: job not found")
	ErrWorkerNotFound = errors.New("governor: worker not found")
	ErrAlertNotFound  = errors.New("governor: alert not found")
	ErrNodeNotFound   = errors.New("governor: cluster node not found")
	ErrDLQNotFound    = errors.New("governor: dlq entry not found")
	ErrCronNotFound   = errors.New("governor: cron schedule not found")

	// Conflict errors.
	ErrJobAlreadyExists   = errors.New("governor: job already exists")
	ErrQueueDisabled      = errors.New("governor: queue is disabled")
	ErrAlertAcknowledged  = errors.New("governor: alert already acknowledged")
	ErrDuplicateSchedule  = errors.New("governor: duplicate cron schedule")
	ErrWorkerBusy         = errors.New("governor: worker is mid-execution")
	ErrNoIdleWorker       = errors.New("governor: no idle worker available")
	ErrCapacityExhausted  = errors.New("governor: queue at max concurrency")
	ErrRateLimited        = errors.New("governor: resource rate limit exceeded")
	ErrInvalidQueueConfig = errors.New("governor: invalid queue configuration")

	// Lifecycle errors.
	ErrShuttingDown   = errors.New("governor: engine is shutting down")
	ErrAlreadyStarted = errors.New("governor: engine already started")
	ErrLeadershipLost = errors.New("governor: cluster leadership lost")
	ErrNotLeader      = errors.New("governor: not the cluster leader")
)

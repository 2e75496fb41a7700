package webhook

// Lifecycle event types. Each constant maps to one ext lifecycle hook
// and becomes the Type field of the delivered envelope.
const (
	EventJobCompleted      = "governor.job.completed"
	EventJobFailed         = "governor.job.failed"
	EventJobHardTimeout    = "governor.job.hard_timeout"
	EventWorkerRecycled    = "governor.worker.recycled"
	EventScaleDecision     = "governor.scale.decision"
	EventMemoryPressure    = "governor.memory.pressure"
	EventAlertRaised       = "governor.alert.raised"
	EventAlertAcknowledged = "governor.alert.acknowledged"
	EventCronFired         = "governor.cron.fired"
)

// AllEvents returns every event type this extension can deliver.
func AllEvents() []string {
	return []string{
		EventJobCompleted,
		EventJobFailed,
		EventJobHardTimeout,
		EventWorkerRecycled,
		EventScaleDecision,
		EventMemoryPressure,
		EventAlertRaised,
		EventAlertAcknowledged,
		EventCronFired,
	}
}

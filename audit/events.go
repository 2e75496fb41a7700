package audit

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionJobDispatched     = "job.dispatched"
	ActionJobCompleted      = "job.completed"
	ActionJobFailed         = "job.failed"
	ActionJobSoftTimeout    = "job.soft_timeout"
	ActionJobHardTimeout    = "job.hard_timeout"
	ActionWorkerStarted     = "worker.started"
	ActionWorkerRecycled    = "worker.recycled"
	ActionScaleDecision     = "scale.decision"
	ActionMemoryPressure    = "memory.pressure"
	ActionAlertRaised       = "alert.raised"
	ActionAlertAcknowledged = "alert.acknowledged"
	ActionCronFired         = "cron.fired"
)

// Audit event categories group related actions.
const (
	CategoryJob    = "governor.job"
	CategoryWorker = "governor.worker"
	CategoryScale  = "governor.scale"
	CategoryAlert  = "governor.alert"
	CategoryCron   = "governor.cron"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob    = "job"
	ResourceWorker = "worker"
	ResourceQueue  = "queue"
	ResourceAlert  = "alert"
	ResourceCron   = "cron_entry"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobDispatched,
		ActionJobCompleted,
		ActionJobFailed,
		ActionJobSoftTimeout,
		ActionJobHardTimeout,
		ActionWorkerStarted,
		ActionWorkerRecycled,
		ActionScaleDecision,
		ActionMemoryPressure,
		ActionAlertRaised,
		ActionAlertAcknowledged,
		ActionCronFired,
	}
}

package queue

import (
	"fmt"
	"time"
)

// Tier is a queue's priority band. Lower values dispatch first.
type Tier int

// Priority tiers, most critical first.
const (
	TierCritical   Tier = 1
	TierHigh       Tier = 3
	TierNormal     Tier = 5
	TierLow        Tier = 7
	TierBackground Tier = 10
)

// Tiers lists all tiers in dispatch order.
func Tiers() []Tier {
	return []Tier{TierCritical, TierHigh, TierNormal, TierLow, TierBackground}
}

// String returns the tier's human-readable name.
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	case TierNormal:
		return "normal"
	case TierLow:
		return "low"
	case TierBackground:
		return "background"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Config is the full governance policy for one queue. It is resolved as
// a read snapshot: mutating a Config after registration has no effect
// until it is passed to Registry.SetConfig again.
type Config struct {
	// Name is the queue identifier (must match job.Queue).
	Name string

	// Tier is the queue's priority band.
	Tier Tier

	// MinWorkers and MaxWorkers bound the worker pool. The autoscaler
	// never converges outside [MinWorkers, MaxWorkers]; a floor of
	// MinWorkers is retained even at zero load.
	MinWorkers int
	MaxWorkers int

	// SoftMemoryMB schedules a worker recycle at the next job boundary
	// when exceeded. HardMemoryMB additionally raises a critical alert.
	SoftMemoryMB int
	HardMemoryMB int

	// MaxJobsPerWorker recycles a worker after it has processed this
	// many jobs. Zero disables the job-count trigger.
	MaxJobsPerWorker int

	// MaxWorkerUptime recycles a worker after this much wall time.
	// Zero disables the uptime trigger.
	MaxWorkerUptime time.Duration

	// ResourceKey names the shared rate-limit resource jobs on this
	// queue consume (an external API, a hot internal path). Empty means
	// no admission control beyond concurrency.
	ResourceKey string

	// ResourceLimit and ResourceWindow define the sliding-window budget
	// for ResourceKey. Ignored when ResourceKey is empty.
	ResourceLimit  int
	ResourceWindow time.Duration

	// DispatchRate throttles local dequeue from this queue in jobs per
	// second (token bucket). Zero disables the throttle. DispatchBurst
	// defaults to 1 when DispatchRate is set.
	DispatchRate  float64
	DispatchBurst int

	// Disabled soft-disables the queue: dispatch skips it, but its
	// registration, workers, and metrics survive so it can be re-enabled
	// without losing history.
	Disabled bool
}

// Validate checks invariants a Config must satisfy before registration.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("queue config: empty name")
	}
	if c.MinWorkers < 0 {
		return fmt.Errorf("queue %q: negative MinWorkers", c.Name)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("queue %q: MaxWorkers must be positive", c.Name)
	}
	if c.MinWorkers > c.MaxWorkers {
		return fmt.Errorf("queue %q: MinWorkers %d > MaxWorkers %d", c.Name, c.MinWorkers, c.MaxWorkers)
	}
	if c.SoftMemoryMB > 0 && c.HardMemoryMB > 0 && c.SoftMemoryMB > c.HardMemoryMB {
		return fmt.Errorf("queue %q: SoftMemoryMB %d > HardMemoryMB %d", c.Name, c.SoftMemoryMB, c.HardMemoryMB)
	}
	if c.ResourceKey != "" && (c.ResourceLimit <= 0 || c.ResourceWindow <= 0) {
		return fmt.Errorf("queue %q: ResourceKey %q needs a positive ResourceLimit and ResourceWindow", c.Name, c.ResourceKey)
	}
	return nil
}

package memmon

// Status classifies a memory reading against soft/hard limits.
type Status int

const (
	// WithinLimits means usage is below the soft limit.
	WithinLimits Status = iota
	// ExceedsWarning means usage reached the soft limit: recycle at the
	// next job boundary.
	ExceedsWarning
	// ExceedsCritical means usage reached the hard limit: immediate
	// alert, recycle at the next job boundary.
	ExceedsCritical
)

// String returns the status name used in logs and alerts.
func (s Status) String() string {
	switch s {
	case ExceedsWarning:
		return "exceeds_warning"
	case ExceedsCritical:
		return "exceeds_critical"
	default:
		return "within_limits"
	}
}

// Derive classifies usedMB against the limits. A zero soft or hard
// limit disables that threshold.
func Derive(usedMB, softMB, hardMB float64) Status {
	if hardMB > 0 && usedMB >= hardMB {
		return ExceedsCritical
	}
	if softMB > 0 && usedMB >= softMB {
		return ExceedsWarning
	}
	return WithinLimits
}

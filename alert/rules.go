package alert

import "time"

// Threshold holds warning and critical bounds for one metric. A zero
// bound disables that level; Critical should be >= Warning when both
// are set.
type Threshold struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Classify returns the severity value triggers, or ("", false) when it
// stays under every enabled bound.
func (t Threshold) Classify(value float64) (Severity, bool) {
	switch {
	case t.Critical > 0 && value >= t.Critical:
		return SeverityCritical, true
	case t.Warning > 0 && value >= t.Warning:
		return SeverityWarning, true
	default:
		return "", false
	}
}

// boundFor returns the threshold the given severity crossed.
func (t Threshold) boundFor(sev Severity) float64 {
	if sev == SeverityCritical {
		return t.Critical
	}
	return t.Warning
}

// Rules is one set of thresholds covering every alert type.
// QueueDepth is a waiting-job count, ErrorRate and TimeoutRate are 0..1
// ratios, ProcessingTime bounds the p95 latency, and MemoryUsage is
// megabytes of worker memory.
type Rules struct {
	QueueDepth     Threshold `json:"queue_depth"`
	ErrorRate      Threshold `json:"error_rate"`
	TimeoutRate    Threshold `json:"timeout_rate"`
	ProcessingTime struct {
		Warning  time.Duration `json:"warning"`
		Critical time.Duration `json:"critical"`
	} `json:"processing_time"`
	MemoryUsage Threshold `json:"memory_usage"`
}

// threshold flattens the rule for typ into a Threshold. Processing
// time converts to milliseconds so every type compares as float64.
func (r Rules) threshold(typ Type) Threshold {
	switch typ {
	case TypeQueueDepth:
		return r.QueueDepth
	case TypeErrorRate:
		return r.ErrorRate
	case TypeTimeoutRate:
		return r.TimeoutRate
	case TypeProcessingTime:
		return Threshold{
			Warning:  float64(r.ProcessingTime.Warning.Milliseconds()),
			Critical: float64(r.ProcessingTime.Critical.Milliseconds()),
		}
	case TypeMemoryUsage:
		return r.MemoryUsage
	default:
		return Threshold{}
	}
}

// DefaultRules returns a conservative baseline meant to be overridden
// per deployment.
func DefaultRules() Rules {
	r := Rules{
		QueueDepth:  Threshold{Warning: 200, Critical: 1000},
		ErrorRate:   Threshold{Warning: 0.05, Critical: 0.20},
		TimeoutRate: Threshold{Warning: 0.02, Critical: 0.10},
		MemoryUsage: Threshold{Warning: 768, Critical: 1024},
	}
	r.ProcessingTime.Warning = 30 * time.Second
	r.ProcessingTime.Critical = 2 * time.Minute
	return r
}

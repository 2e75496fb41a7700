package alert

import (
	"context"
	"time"

	"github.com/queueworks/governor/id"
)

// ────────────────────────────────────────────────────────────────────
// Enums
// ────────────────────────────────────────────────────────────────────

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Type identifies which metric a rule watched.
type Type string

const (
	TypeQueueDepth     Type = "queue_depth"
	TypeErrorRate      Type = "error_rate"
	TypeTimeoutRate    Type = "timeout_rate"
	TypeProcessingTime Type = "processing_time"
	TypeMemoryUsage    Type = "memory_usage"
)

// Types returns all alert types in a stable order.
func Types() []Type {
	return []Type{TypeQueueDepth, TypeErrorRate, TypeTimeoutRate, TypeProcessingTime, TypeMemoryUsage}
}

// ────────────────────────────────────────────────────────────────────
// Alert
// ────────────────────────────────────────────────────────────────────

// Alert is one raised threshold breach. While unacknowledged it is
// "active" and deduplicates further breaches of the same (queue, type).
type Alert struct {
	ID       id.AlertID `json:"id"`
	Queue    string     `json:"queue"`
	Type     Type       `json:"type"`
	Severity Severity   `json:"severity"`

	// Value is the most recently observed measurement and Threshold the
	// rule bound it crossed. Units depend on Type: a count for
	// queue_depth, a 0..1 ratio for error_rate and timeout_rate,
	// milliseconds for processing_time, megabytes for memory_usage.
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`

	RaisedAt  time.Time `json:"raised_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Active reports whether the alert still deduplicates new breaches.
func (a *Alert) Active() bool { return !a.Acknowledged }

// ────────────────────────────────────────────────────────────────────
// Store
// ────────────────────────────────────────────────────────────────────

// Store persists alerts. Implementations live under store/.
type Store interface {
	// SaveAlert inserts a new alert or updates an existing one by ID.
	SaveAlert(ctx context.Context, a *Alert) error

	// ActiveAlert returns the unacknowledged alert for (queue, typ),
	// or governor.ErrAlertNotFound when none is active.
	ActiveAlert(ctx context.Context, queue string, typ Type) (*Alert, error)

	// GetAlert returns an alert by ID regardless of state.
	GetAlert(ctx context.Context, alertID id.AlertID) (*Alert, error)

	// ListActiveAlerts returns all unacknowledged alerts, newest first.
	ListActiveAlerts(ctx context.Context) ([]*Alert, error)

	// ListAlerts returns alerts raised at or after since, newest first,
	// including acknowledged ones.
	ListAlerts(ctx context.Context, since time.Time) ([]*Alert, error)
}

// Emitter publishes lifecycle events to registered extensions. The
// extension registry satisfies this directly.
type Emitter interface {
	EmitAlertRaised(ctx context.Context, a *Alert)
	EmitAlertAcknowledged(ctx context.Context, a *Alert)
}

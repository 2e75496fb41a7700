package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/metrics"
)

// ── Alert model ───────────────────────────────────────────────────

type alertModel struct {
	bun.BaseModel `bun:"table:governor_alerts"`

	ID             string     `bun:"id,pk"`
	Queue          string     `bun:"queue,notnull"`
	Type           string     `bun:"type,notnull"`
	Severity       string     `bun:"severity,notnull"`
	Value          float64    `bun:"value,notnull"`
	Threshold      float64    `bun:"threshold,notnull"`
	RaisedAt       time.Time  `bun:"raised_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
	Acknowledged   bool       `bun:"acknowledged,notnull,default:false"`
	AcknowledgedBy string     `bun:"acknowledged_by"`
	AcknowledgedAt *time.Time `bun:"acknowledged_at"`
}

func toAlertModel(a *alert.Alert) *alertModel {
	return &alertModel{
		ID:             a.ID.String(),
		Queue:          a.Queue,
		Type:           string(a.Type),
		Severity:       string(a.Severity),
		Value:          a.Value,
		Threshold:      a.Threshold,
		RaisedAt:       a.RaisedAt,
		UpdatedAt:      a.UpdatedAt,
		Acknowledged:   a.Acknowledged,
		AcknowledgedBy: a.AcknowledgedBy,
		AcknowledgedAt: a.AcknowledgedAt,
	}
}

func fromAlertModel(m *alertModel) (*alert.Alert, error) {
	parsedID, err := id.ParseAlertID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("governor/bun: parse alert id %q: %w", m.ID, err)
	}
	return &alert.Alert{
		ID:             parsedID,
		Queue:          m.Queue,
		Type:           alert.Type(m.Type),
		Severity:       alert.Severity(m.Severity),
		Value:          m.Value,
		Threshold:      m.Threshold,
		RaisedAt:       m.RaisedAt,
		UpdatedAt:      m.UpdatedAt,
		Acknowledged:   m.Acknowledged,
		AcknowledgedBy: m.AcknowledgedBy,
		AcknowledgedAt: m.AcknowledgedAt,
	}, nil
}

// ── DLQ model ─────────────────────────────────────────────────────

type dlqEntryModel struct {
	bun.BaseModel `bun:"table:governor_dlq"`

	ID         string     `bun:"id,pk"`
	JobID      string     `bun:"job_id,notnull"`
	JobName    string     `bun:"job_name,notnull"`
	Queue      string     `bun:"queue,notnull"`
	Payload    []byte     `bun:"payload,type:bytea"`
	Priority   int        `bun:"priority,notnull,default:0"`
	Reason     string     `bun:"reason,notnull"`
	Error      string     `bun:"error"`
	FailedAt   time.Time  `bun:"failed_at,notnull"`
	ReplayedAt *time.Time `bun:"replayed_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func toDLQModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:         e.ID.String(),
		JobID:      e.JobID.String(),
		JobName:    e.JobName,
		Queue:      e.Queue,
		Payload:    e.Payload,
		Priority:   e.Priority,
		Reason:     string(e.Reason),
		Error:      e.Error,
		FailedAt:   e.FailedAt,
		ReplayedAt: e.ReplayedAt,
		CreatedAt:  e.CreatedAt,
	}
}

func fromDLQModel(m *dlqEntryModel) (*dlq.Entry, error) {
	parsedID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("governor/bun: parse dlq id %q: %w", m.ID, err)
	}
	e := &dlq.Entry{
		ID:         parsedID,
		JobName:    m.JobName,
		Queue:      m.Queue,
		Payload:    m.Payload,
		Priority:   m.Priority,
		Reason:     job.FailureReason(m.Reason),
		Error:      m.Error,
		FailedAt:   m.FailedAt,
		ReplayedAt: m.ReplayedAt,
		CreatedAt:  m.CreatedAt,
	}
	if m.JobID != "" {
		if parsedJob, jErr := id.ParseJobID(m.JobID); jErr == nil {
			e.JobID = parsedJob
		}
	}
	return e, nil
}

// ── Metric sample model ───────────────────────────────────────────

type sampleModel struct {
	bun.BaseModel `bun:"table:governor_metric_samples"`

	ID            int64     `bun:"id,pk,autoincrement"`
	Queue         string    `bun:"queue,notnull"`
	Timestamp     time.Time `bun:"ts,notnull"`
	Waiting       int       `bun:"waiting,notnull"`
	Active        int       `bun:"active,notnull"`
	Delayed       int       `bun:"delayed,notnull"`
	Failed        int       `bun:"failed,notnull"`
	Completed     int       `bun:"completed,notnull"`
	JobsPerMinute float64   `bun:"jobs_per_minute,notnull"`
	ErrorRate     float64   `bun:"error_rate,notnull"`
	TimeoutRate   float64   `bun:"timeout_rate,notnull"`
	P50           int64     `bun:"p50,notnull"`
	P95           int64     `bun:"p95,notnull"`
	P99           int64     `bun:"p99,notnull"`
	MemoryMB      float64   `bun:"memory_mb,notnull"`
}

func toSampleModel(s metrics.Sample) *sampleModel {
	return &sampleModel{
		Queue:         s.Queue,
		Timestamp:     s.Timestamp,
		Waiting:       s.Waiting,
		Active:        s.Active,
		Delayed:       s.Delayed,
		Failed:        s.Failed,
		Completed:     s.Completed,
		JobsPerMinute: s.JobsPerMinute,
		ErrorRate:     s.ErrorRate,
		TimeoutRate:   s.TimeoutRate,
		P50:           int64(s.P50),
		P95:           int64(s.P95),
		P99:           int64(s.P99),
		MemoryMB:      s.MemoryMB,
	}
}

func fromSampleModel(m *sampleModel) metrics.Sample {
	return metrics.Sample{
		Queue:         m.Queue,
		Timestamp:     m.Timestamp,
		Waiting:       m.Waiting,
		Active:        m.Active,
		Delayed:       m.Delayed,
		Failed:        m.Failed,
		Completed:     m.Completed,
		JobsPerMinute: m.JobsPerMinute,
		ErrorRate:     m.ErrorRate,
		TimeoutRate:   m.TimeoutRate,
		P50:           time.Duration(m.P50),
		P95:           time.Duration(m.P95),
		P99:           time.Duration(m.P99),
		MemoryMB:      m.MemoryMB,
	}
}

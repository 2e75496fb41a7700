package bunstore

import (
	"context"
	"fmt"
	"time"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/id"
)

// SaveAlert inserts a new alert or updates an existing one by ID.
func (s *Store) SaveAlert(ctx context.Context, a *alert.Alert) error {
	m := toAlertModel(a)
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("severity = EXCLUDED.severity").
		Set("updated_at = EXCLUDED.updated_at").
		Set("acknowledged = EXCLUDED.acknowledged").
		Set("acknowledged_by = EXCLUDED.acknowledged_by").
		Set("acknowledged_at = EXCLUDED.acknowledged_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("governor/bun: save alert: %w", err)
	}
	return nil
}

// ActiveAlert returns the unacknowledged alert for (queue, typ).
func (s *Store) ActiveAlert(ctx context.Context, queueName string, typ alert.Type) (*alert.Alert, error) {
	m := new(alertModel)
	err := s.db.NewSelect().Model(m).
		Where("queue = ?", queueName).
		Where("type = ?", string(typ)).
		Where("acknowledged = FALSE").
		Order("raised_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, governor.ErrAlertNotFound
		}
		return nil, fmt.Errorf("governor/bun: active alert: %w", err)
	}
	return fromAlertModel(m)
}

// GetAlert returns an alert by ID regardless of state.
func (s *Store) GetAlert(ctx context.Context, alertID id.AlertID) (*alert.Alert, error) {
	m := new(alertModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", alertID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, governor.ErrAlertNotFound
		}
		return nil, fmt.Errorf("governor/bun: get alert: %w", err)
	}
	return fromAlertModel(m)
}

// ListActiveAlerts returns all unacknowledged alerts, newest first.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]*alert.Alert, error) {
	var models []alertModel
	err := s.db.NewSelect().Model(&models).
		Where("acknowledged = FALSE").
		Order("raised_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("governor/bun: list active alerts: %w", err)
	}
	return convertAlerts(models)
}

// ListAlerts returns alerts raised at or after since, newest first,
// including acknowledged ones.
func (s *Store) ListAlerts(ctx context.Context, since time.Time) ([]*alert.Alert, error) {
	var models []alertModel
	err := s.db.NewSelect().Model(&models).
		Where("raised_at >= ?", since).
		Order("raised_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("governor/bun: list alerts: %w", err)
	}
	return convertAlerts(models)
}

func convertAlerts(models []alertModel) ([]*alert.Alert, error) {
	alerts := make([]*alert.Alert, 0, len(models))
	for i := range models {
		a, err := fromAlertModel(&models[i])
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

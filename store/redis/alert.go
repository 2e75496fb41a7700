package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/id"
)

// activeField is the dedup index field for an alert: "{queue}|{type}".
func activeField(queueName string, typ alert.Type) string {
	return queueName + "|" + string(typ)
}

// SaveAlert stores the alert as JSON and maintains the active-alert
// dedup index.
func (s *Store) SaveAlert(ctx context.Context, a *alert.Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal alert: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, alertKey(a.ID.String()), raw, 0)
	pipe.SAdd(ctx, alertIDsKey, a.ID.String())
	if a.Acknowledged {
		pipe.HDel(ctx, alertActiveKey, activeField(a.Queue, a.Type))
	} else {
		pipe.HSet(ctx, alertActiveKey, activeField(a.Queue, a.Type), a.ID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: save alert: %w", err)
	}
	return nil
}

// ActiveAlert returns the unacknowledged alert for (queue, typ).
func (s *Store) ActiveAlert(ctx context.Context, queueName string, typ alert.Type) (*alert.Alert, error) {
	aID, err := s.client.HGet(ctx, alertActiveKey, activeField(queueName, typ)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, governor.ErrAlertNotFound
		}
		return nil, fmt.Errorf("governor/redis: active alert lookup: %w", err)
	}
	return s.getAlert(ctx, aID)
}

// GetAlert returns an alert by ID regardless of state.
func (s *Store) GetAlert(ctx context.Context, alertID id.AlertID) (*alert.Alert, error) {
	return s.getAlert(ctx, alertID.String())
}

// ListActiveAlerts returns all unacknowledged alerts, newest first.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]*alert.Alert, error) {
	ids, err := s.client.HVals(ctx, alertActiveKey).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: list active alerts: %w", err)
	}
	return s.loadAlerts(ctx, ids, time.Time{})
}

// ListAlerts returns alerts raised at or after since, newest first,
// including acknowledged ones.
func (s *Store) ListAlerts(ctx context.Context, since time.Time) ([]*alert.Alert, error) {
	ids, err := s.client.SMembers(ctx, alertIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: list alerts: %w", err)
	}
	return s.loadAlerts(ctx, ids, since)
}

// ── helpers ──

func (s *Store) getAlert(ctx context.Context, aID string) (*alert.Alert, error) {
	raw, err := s.client.Get(ctx, alertKey(aID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, governor.ErrAlertNotFound
		}
		return nil, fmt.Errorf("governor/redis: get alert: %w", err)
	}
	var a alert.Alert
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("governor/redis: unmarshal alert: %w", err)
	}
	return &a, nil
}

func (s *Store) loadAlerts(ctx context.Context, ids []string, since time.Time) ([]*alert.Alert, error) {
	alerts := make([]*alert.Alert, 0, len(ids))
	for _, aID := range ids {
		a, err := s.getAlert(ctx, aID)
		if err != nil {
			if errors.Is(err, governor.ErrAlertNotFound) {
				continue
			}
			return nil, err
		}
		if !since.IsZero() && a.RaisedAt.Before(since) {
			continue
		}
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].RaisedAt.After(alerts[j].RaisedAt)
	})
	return alerts, nil
}

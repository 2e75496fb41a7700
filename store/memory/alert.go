package memory

import (
	"context"
	"sort"
	"time"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/id"
)

// ──────────────────────────────────────────────────
// Alert store
// ──────────────────────────────────────────────────

// SaveAlert inserts a new alert or updates an existing one by ID.
func (m *Store) SaveAlert(_ context.Context, a *alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return governor.ErrStoreClosed
	}
	cp := *a
	m.alerts[a.ID.String()] = &cp
	return nil
}

// ActiveAlert returns the unacknowledged alert for (queue, typ).
func (m *Store) ActiveAlert(_ context.Context, queueName string, typ alert.Type) (*alert.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.alerts {
		if a.Queue == queueName && a.Type == typ && !a.Acknowledged {
			cp := *a
			return &cp, nil
		}
	}
	return nil, governor.ErrAlertNotFound
}

// GetAlert returns an alert by ID regardless of state.
func (m *Store) GetAlert(_ context.Context, alertID id.AlertID) (*alert.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[alertID.String()]
	if !ok {
		return nil, governor.ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

// ListActiveAlerts returns all unacknowledged alerts, newest first.
func (m *Store) ListActiveAlerts(_ context.Context) ([]*alert.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*alert.Alert
	for _, a := range m.alerts {
		if !a.Acknowledged {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortAlertsNewestFirst(out)
	return out, nil
}

// ListAlerts returns alerts raised at or after since, newest first.
func (m *Store) ListAlerts(_ context.Context, since time.Time) ([]*alert.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*alert.Alert
	for _, a := range m.alerts {
		if !a.RaisedAt.Before(since) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortAlertsNewestFirst(out)
	return out, nil
}

func sortAlertsNewestFirst(alerts []*alert.Alert) {
	sort.Slice(alerts, func(i, k int) bool {
		return alerts[i].RaisedAt.After(alerts[k].RaisedAt)
	})
}

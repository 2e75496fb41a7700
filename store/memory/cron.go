package memory

import (
	"context"
	"sort"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/cron"
	"github.com/queueworks/governor/id"
)

// RegisterCron stores a new cron entry. Entry names are unique.
func (m *Store) RegisterCron(_ context.Context, entry *cron.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return governor.ErrStoreClosed
	}
	for _, existing := range m.crons {
		if existing.Name == entry.Name {
			return governor.ErrDuplicateSchedule
		}
	}
	cp := *entry
	m.crons[entry.ID.String()] = &cp
	return nil
}

// GetCron retrieves a cron entry by ID.
func (m *Store) GetCron(_ context.Context, entryID id.CronID) (*cron.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.crons[entryID.String()]
	if !ok {
		return nil, governor.ErrCronNotFound
	}
	cp := *entry
	return &cp, nil
}

// ListCrons returns all cron entries ordered by creation time.
func (m *Store) ListCrons(_ context.Context) ([]*cron.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*cron.Entry, 0, len(m.crons))
	for _, entry := range m.crons {
		cp := *entry
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateCron replaces a stored cron entry.
func (m *Store) UpdateCron(_ context.Context, entry *cron.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.crons[entry.ID.String()]; !ok {
		return governor.ErrCronNotFound
	}
	cp := *entry
	m.crons[entry.ID.String()] = &cp
	return nil
}

// DeleteCron removes a cron entry.
func (m *Store) DeleteCron(_ context.Context, entryID id.CronID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.crons[entryID.String()]; !ok {
		return governor.ErrCronNotFound
	}
	delete(m.crons, entryID.String())
	return nil
}

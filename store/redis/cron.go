package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/cron"
	"github.com/queueworks/governor/id"
)

// RegisterCron persists a new cron entry. Entry names are unique; the
// name index is claimed with HSetNX so concurrent registrations of the
// same name race safely.
func (s *Store) RegisterCron(ctx context.Context, entry *cron.Entry) error {
	claimed, err := s.client.HSetNX(ctx, cronNamesKey, entry.Name, entry.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("governor/redis: claim cron name: %w", err)
	}
	if !claimed {
		return governor.ErrDuplicateSchedule
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal cron entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, cronKey(entry.ID.String()), raw, 0)
	pipe.SAdd(ctx, cronIDsKey, entry.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: register cron: %w", err)
	}
	return nil
}

// GetCron retrieves a cron entry by ID.
func (s *Store) GetCron(ctx context.Context, entryID id.CronID) (*cron.Entry, error) {
	return s.getCron(ctx, entryID.String())
}

// ListCrons returns all cron entries ordered by creation time.
func (s *Store) ListCrons(ctx context.Context) ([]*cron.Entry, error) {
	ids, err := s.client.SMembers(ctx, cronIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: list crons: %w", err)
	}

	entries := make([]*cron.Entry, 0, len(ids))
	for _, eID := range ids {
		e, getErr := s.getCron(ctx, eID)
		if getErr != nil {
			if errors.Is(getErr, governor.ErrCronNotFound) {
				continue
			}
			return nil, getErr
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// UpdateCron replaces a stored cron entry.
func (s *Store) UpdateCron(ctx context.Context, entry *cron.Entry) error {
	exists, err := s.client.Exists(ctx, cronKey(entry.ID.String())).Result()
	if err != nil {
		return fmt.Errorf("governor/redis: cron exists check: %w", err)
	}
	if exists == 0 {
		return governor.ErrCronNotFound
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal cron entry: %w", err)
	}
	if err := s.client.Set(ctx, cronKey(entry.ID.String()), raw, 0).Err(); err != nil {
		return fmt.Errorf("governor/redis: update cron: %w", err)
	}
	return nil
}

// DeleteCron removes a cron entry and frees its name.
func (s *Store) DeleteCron(ctx context.Context, entryID id.CronID) error {
	entry, err := s.getCron(ctx, entryID.String())
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, cronKey(entryID.String()))
	pipe.SRem(ctx, cronIDsKey, entryID.String())
	pipe.HDel(ctx, cronNamesKey, entry.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: delete cron: %w", err)
	}
	return nil
}

func (s *Store) getCron(ctx context.Context, eID string) (*cron.Entry, error) {
	raw, err := s.client.Get(ctx, cronKey(eID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, governor.ErrCronNotFound
		}
		return nil, fmt.Errorf("governor/redis: get cron: %w", err)
	}
	var e cron.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("governor/redis: unmarshal cron entry: %w", err)
	}
	return &e, nil
}

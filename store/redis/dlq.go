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
	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/id"
)

// PushDLQ adds a failed job entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal dlq entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dlqKey(entry.ID.String()), raw, 0)
	pipe.SAdd(ctx, dlqIDsKey, entry.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest
// failure first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.SMembers(ctx, dlqIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		e, getErr := s.getDLQ(ctx, eID)
		if getErr != nil {
			if errors.Is(getErr, governor.ErrDLQNotFound) {
				continue
			}
			return nil, getErr
		}
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].FailedAt.After(entries[j].FailedAt)
	})

	if opts.Offset >= len(entries) {
		return nil, nil
	}
	if opts.Offset > 0 {
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	return s.getDLQ(ctx, entryID.String())
}

// ReplayDLQ marks a DLQ entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	e, err := s.getDLQ(ctx, entryID.String())
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal dlq entry: %w", err)
	}
	if err := s.client.Set(ctx, dlqKey(e.ID.String()), raw, 0).Err(); err != nil {
		return fmt.Errorf("governor/redis: replay dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, dlqIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("governor/redis: purge dlq: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		e, getErr := s.getDLQ(ctx, eID)
		if getErr != nil {
			continue
		}
		if !e.FailedAt.Before(before) {
			continue
		}
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, dlqKey(eID))
		pipe.SRem(ctx, dlqIDsKey, eID)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return purged, fmt.Errorf("governor/redis: purge dlq del: %w", pErr)
		}
		purged++
	}
	return purged, nil
}

// CountDLQ returns the total number of dead letter entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.client.SCard(ctx, dlqIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("governor/redis: count dlq: %w", err)
	}
	return count, nil
}

func (s *Store) getDLQ(ctx context.Context, eID string) (*dlq.Entry, error) {
	raw, err := s.client.Get(ctx, dlqKey(eID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, governor.ErrDLQNotFound
		}
		return nil, fmt.Errorf("governor/redis: get dlq: %w", err)
	}
	var e dlq.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("governor/redis: unmarshal dlq entry: %w", err)
	}
	return &e, nil
}

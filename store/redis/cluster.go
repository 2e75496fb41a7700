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
	"github.com/queueworks/governor/cluster"
	"github.com/queueworks/governor/id"
)

// RegisterNode adds a node to the cluster registry.
func (s *Store) RegisterNode(ctx context.Context, n *cluster.Node) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal node: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, nodeKey(n.ID.String()), raw, 0)
	pipe.SAdd(ctx, nodeIDsKey, n.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: register node: %w", err)
	}
	return nil
}

// DeregisterNode removes a node and releases its leadership lease if it
// holds one.
func (s *Store) DeregisterNode(ctx context.Context, nodeID id.NodeID) error {
	nID := nodeID.String()
	exists, err := s.client.Exists(ctx, nodeKey(nID)).Result()
	if err != nil {
		return fmt.Errorf("governor/redis: node exists check: %w", err)
	}
	if exists == 0 {
		return governor.ErrNodeNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, nodeKey(nID))
	pipe.SRem(ctx, nodeIDsKey, nID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: deregister node: %w", err)
	}

	current, err := s.client.Get(ctx, leaderKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("governor/redis: deregister leader check: %w", err)
	}
	if current == nID {
		if err := s.client.Del(ctx, leaderKey).Err(); err != nil {
			return fmt.Errorf("governor/redis: release leader lease: %w", err)
		}
	}
	return nil
}

// HeartbeatNode refreshes the node's LastSeen timestamp.
func (s *Store) HeartbeatNode(ctx context.Context, nodeID id.NodeID) error {
	n, err := s.getNode(ctx, nodeID.String())
	if err != nil {
		return err
	}
	n.LastSeen = time.Now().UTC()
	return s.saveNode(ctx, n)
}

// ListNodes returns all registered nodes ordered by start time.
func (s *Store) ListNodes(ctx context.Context) ([]*cluster.Node, error) {
	ids, err := s.client.SMembers(ctx, nodeIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: list nodes: %w", err)
	}

	nodes := make([]*cluster.Node, 0, len(ids))
	for _, nID := range ids {
		n, getErr := s.getNode(ctx, nID)
		if getErr != nil {
			if errors.Is(getErr, governor.ErrNodeNotFound) {
				continue
			}
			return nil, getErr
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].StartedAt.Before(nodes[j].StartedAt)
	})
	return nodes, nil
}

// ReapDeadNodes removes nodes whose last heartbeat is older than
// threshold and returns the removed records.
func (s *Store) ReapDeadNodes(ctx context.Context, threshold time.Duration) ([]*cluster.Node, error) {
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var reaped []*cluster.Node
	for _, n := range nodes {
		if !n.Stale(now, threshold) {
			continue
		}
		if err := s.DeregisterNode(ctx, n.ID); err != nil {
			if errors.Is(err, governor.ErrNodeNotFound) {
				continue
			}
			return reaped, err
		}
		n.State = cluster.NodeDead
		reaped = append(reaped, n)
	}
	return reaped, nil
}

// AcquireLeadership takes the leader lock with SET NX and a TTL. The
// holder re-acquires by extending the TTL.
func (s *Store) AcquireLeadership(ctx context.Context, nodeID id.NodeID, ttl time.Duration) (bool, error) {
	nID := nodeID.String()

	ok, err := s.client.SetNX(ctx, leaderKey, nID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("governor/redis: acquire leadership setnx: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := s.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// Lease expired between SetNX and Get; next round wins it.
			return false, nil
		}
		return false, fmt.Errorf("governor/redis: acquire leadership get: %w", err)
	}
	if current != nID {
		return false, nil
	}
	if err := s.client.Expire(ctx, leaderKey, ttl).Err(); err != nil {
		return false, fmt.Errorf("governor/redis: acquire leadership expire: %w", err)
	}
	return true, nil
}

// RenewLeadership extends the lease only for the current holder.
func (s *Store) RenewLeadership(ctx context.Context, nodeID id.NodeID, ttl time.Duration) (bool, error) {
	current, err := s.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("governor/redis: renew leadership get: %w", err)
	}
	if current != nodeID.String() {
		return false, nil
	}
	if err := s.client.Expire(ctx, leaderKey, ttl).Err(); err != nil {
		return false, fmt.Errorf("governor/redis: renew leadership expire: %w", err)
	}
	return true, nil
}

// Leader returns the node holding an unexpired lease, or nil when there
// is no leader.
func (s *Store) Leader(ctx context.Context) (*cluster.Node, error) {
	nID, err := s.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("governor/redis: get leader: %w", err)
	}

	n, err := s.getNode(ctx, nID)
	if err != nil {
		if errors.Is(err, governor.ErrNodeNotFound) {
			// Lease outlived the node record.
			return nil, nil
		}
		return nil, err
	}
	n.IsLeader = true
	if ttl, err := s.client.TTL(ctx, leaderKey).Result(); err == nil && ttl > 0 {
		until := time.Now().UTC().Add(ttl)
		n.LeaderUntil = &until
	}
	return n, nil
}

// ── helpers ──

func (s *Store) getNode(ctx context.Context, nID string) (*cluster.Node, error) {
	raw, err := s.client.Get(ctx, nodeKey(nID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, governor.ErrNodeNotFound
		}
		return nil, fmt.Errorf("governor/redis: get node: %w", err)
	}
	var n cluster.Node
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("governor/redis: unmarshal node: %w", err)
	}
	return &n, nil
}

func (s *Store) saveNode(ctx context.Context, n *cluster.Node) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal node: %w", err)
	}
	if err := s.client.Set(ctx, nodeKey(n.ID.String()), raw, 0).Err(); err != nil {
		return fmt.Errorf("governor/redis: save node: %w", err)
	}
	return nil
}

package memory

import (
	"context"
	"sort"
	"time"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/cluster"
	"github.com/queueworks/governor/id"
)

// leaderLease is the in-memory leadership record.
type leaderLease struct {
	nodeID string
	until  time.Time
}

// RegisterNode stores the node, keyed by ID. Re-registering replaces
// the previous record.
func (m *Store) RegisterNode(_ context.Context, n *cluster.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return governor.ErrStoreClosed
	}
	cp := *n
	m.nodes[n.ID.String()] = &cp
	return nil
}

// DeregisterNode removes the node and releases its leadership lease if
// it holds one.
func (m *Store) DeregisterNode(_ context.Context, nodeID id.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[nodeID.String()]; !ok {
		return governor.ErrNodeNotFound
	}
	delete(m.nodes, nodeID.String())
	if m.leader != nil && m.leader.nodeID == nodeID.String() {
		m.leader = nil
	}
	return nil
}

// HeartbeatNode refreshes the node's LastSeen timestamp.
func (m *Store) HeartbeatNode(_ context.Context, nodeID id.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID.String()]
	if !ok {
		return governor.ErrNodeNotFound
	}
	n.LastSeen = time.Now().UTC()
	return nil
}

// ListNodes returns all registered nodes ordered by start time.
func (m *Store) ListNodes(_ context.Context) ([]*cluster.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*cluster.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// ReapDeadNodes removes nodes whose LastSeen is older than threshold
// and returns the removed records.
func (m *Store) ReapDeadNodes(_ context.Context, threshold time.Duration) ([]*cluster.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var reaped []*cluster.Node
	for key, n := range m.nodes {
		if !n.Stale(now, threshold) {
			continue
		}
		cp := *n
		cp.State = cluster.NodeDead
		reaped = append(reaped, &cp)
		delete(m.nodes, key)
		if m.leader != nil && m.leader.nodeID == key {
			m.leader = nil
		}
	}
	return reaped, nil
}

// AcquireLeadership grants the lease when it is free, expired, or
// already held by the caller.
func (m *Store) AcquireLeadership(_ context.Context, nodeID id.NodeID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if m.leader != nil && m.leader.nodeID != nodeID.String() && m.leader.until.After(now) {
		return false, nil
	}
	m.leader = &leaderLease{nodeID: nodeID.String(), until: now.Add(ttl)}
	return true, nil
}

// RenewLeadership extends the lease only for the current holder.
func (m *Store) RenewLeadership(_ context.Context, nodeID id.NodeID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if m.leader == nil || m.leader.nodeID != nodeID.String() || !m.leader.until.After(now) {
		return false, nil
	}
	m.leader.until = now.Add(ttl)
	return true, nil
}

// Leader returns the node holding an unexpired lease, or nil when
// there is no leader.
func (m *Store) Leader(_ context.Context) (*cluster.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.leader == nil || !m.leader.until.After(time.Now().UTC()) {
		return nil, nil
	}
	n, ok := m.nodes[m.leader.nodeID]
	if !ok {
		return nil, nil
	}
	cp := *n
	cp.IsLeader = true
	until := m.leader.until
	cp.LeaderUntil = &until
	return &cp, nil
}

package cluster

import (
	"context"
	"time"

	"github.com/queueworks/governor/id"
)

// Store is the persistence contract for cluster membership and leader
// election.
type Store interface {
	// RegisterNode adds a node to the cluster registry.
	RegisterNode(ctx context.Context, n *Node) error

	// DeregisterNode removes a node from the cluster registry.
	DeregisterNode(ctx context.Context, nodeID id.NodeID) error

	// HeartbeatNode refreshes a node's last-seen timestamp.
	HeartbeatNode(ctx context.Context, nodeID id.NodeID) error

	// ListNodes returns every registered node.
	ListNodes(ctx context.Context) ([]*Node, error)

	// ReapDeadNodes removes and returns nodes whose last heartbeat is
	// older than threshold.
	ReapDeadNodes(ctx context.Context, threshold time.Duration) ([]*Node, error)

	// AcquireLeadership attempts to take the leader lock. Returns true
	// when this node is now leader; the lock expires after ttl unless
	// renewed.
	AcquireLeadership(ctx context.Context, nodeID id.NodeID, ttl time.Duration) (bool, error)

	// RenewLeadership extends the leader lock. Returns false when the
	// lock is held by another node or has already expired.
	RenewLeadership(ctx context.Context, nodeID id.NodeID, ttl time.Duration) (bool, error)

	// Leader returns the current leader, or nil when no leader holds
	// the lock.
	Leader(ctx context.Context) (*Node, error)
}

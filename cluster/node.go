package cluster

import (
	"time"

	"github.com/queueworks/governor/id"
)

// NodeState is the lifecycle state of a governor process in the cluster.
type NodeState string

const (
	// NodeActive means the node is healthy and running workers.
	NodeActive NodeState = "active"
	// NodeDraining means the node is finishing in-flight jobs but not
	// accepting new ones.
	NodeDraining NodeState = "draining"
	// NodeDead means the node stopped heartbeating past the threshold.
	NodeDead NodeState = "dead"
)

// Node is one governor process in a multi-host deployment.
type Node struct {
	ID          id.NodeID         `json:"id"`
	Hostname    string            `json:"hostname"`
	Queues      []string          `json:"queues"`
	State       NodeState         `json:"state"`
	IsLeader    bool              `json:"is_leader"`
	LeaderUntil *time.Time        `json:"leader_until,omitempty"`
	LastSeen    time.Time         `json:"last_seen"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
}

// Stale reports whether the node's last heartbeat is older than the
// threshold as of now.
func (n *Node) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(n.LastSeen) > threshold
}

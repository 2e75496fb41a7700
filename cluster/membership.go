package cluster

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/queueworks/governor/id"
)

// Membership runs one node's cluster participation: registration, the
// heartbeat loop, and the leader election loop. Control loops that must
// run once per fleet (autoscaling, alert evaluation, cron firing) gate
// on IsLeader.
type Membership struct {
	store  Store
	logger *slog.Logger

	node      *Node
	heartbeat time.Duration
	ttl       time.Duration

	mu      sync.Mutex
	leader  bool
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures a Membership.
type Option func(*Membership)

// WithHostname overrides the registered hostname (default os.Hostname).
func WithHostname(hostname string) Option {
	return func(m *Membership) { m.node.Hostname = hostname }
}

// WithQueues records which queues this node serves.
func WithQueues(queues []string) Option {
	return func(m *Membership) { m.node.Queues = queues }
}

// WithHeartbeat overrides the heartbeat interval (default 5s).
func WithHeartbeat(d time.Duration) Option {
	return func(m *Membership) { m.heartbeat = d }
}

// WithLeaderTTL overrides the leadership lease (default 15s). The lease
// must comfortably exceed the heartbeat interval so a healthy leader
// never lapses between renewals.
func WithLeaderTTL(d time.Duration) Option {
	return func(m *Membership) { m.ttl = d }
}

// NewMembership creates a Membership for a fresh node identity.
func NewMembership(store Store, logger *slog.Logger, opts ...Option) *Membership {
	hostname, _ := os.Hostname()
	m := &Membership{
		store:  store,
		logger: logger,
		node: &Node{
			ID:        id.NewNodeID(),
			Hostname:  hostname,
			State:     NodeActive,
			StartedAt: time.Now().UTC(),
		},
		heartbeat: 5 * time.Second,
		ttl:       15 * time.Second,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NodeID returns this node's cluster identity.
func (m *Membership) NodeID() id.NodeID { return m.node.ID }

// IsLeader reports whether this node currently holds the leader lock.
func (m *Membership) IsLeader() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leader
}

// Start registers the node and launches the heartbeat/election loop.
func (m *Membership) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	m.node.LastSeen = time.Now().UTC()
	if err := m.store.RegisterNode(ctx, m.node); err != nil {
		return err
	}
	m.campaign(ctx)

	go m.loop(ctx)
	return nil
}

// Stop surrenders leadership bookkeeping and deregisters the node.
func (m *Membership) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.leader = false
	m.mu.Unlock()

	close(m.stopCh)
	select {
	case <-m.doneCh:
	case <-ctx.Done():
	}
	return m.store.DeregisterNode(ctx, m.node.ID)
}

func (m *Membership) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.HeartbeatNode(ctx, m.node.ID); err != nil {
				m.logger.Warn("cluster heartbeat failed",
					slog.String("node_id", m.node.ID.String()),
					slog.String("error", err.Error()),
				)
			}
			m.campaign(ctx)
		}
	}
}

// campaign renews leadership when held, otherwise tries to acquire it.
// Losing an expected renewal is logged and demotes this node.
func (m *Membership) campaign(ctx context.Context) {
	var (
		held bool
		err  error
	)
	if m.IsLeader() {
		held, err = m.store.RenewLeadership(ctx, m.node.ID, m.ttl)
	} else {
		held, err = m.store.AcquireLeadership(ctx, m.node.ID, m.ttl)
	}
	if err != nil {
		m.logger.Warn("leader election round failed",
			slog.String("node_id", m.node.ID.String()),
			slog.String("error", err.Error()),
		)
		held = false
	}

	m.mu.Lock()
	was := m.leader
	m.leader = held
	m.mu.Unlock()

	switch {
	case held && !was:
		m.logger.Info("acquired cluster leadership",
			slog.String("node_id", m.node.ID.String()),
		)
	case !held && was:
		m.logger.Warn("lost cluster leadership",
			slog.String("node_id", m.node.ID.String()),
		)
	}
}

package autoscale

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/metrics"
	"github.com/queueworks/governor/queue"
	"github.com/queueworks/governor/worker"
)

// State is a queue's position in the scaling state machine.
type State string

const (
	// StateStable means no scaling transition is in progress.
	StateStable State = "stable"
	// StateScalingUp means capacity was raised within the cooldown window.
	StateScalingUp State = "scaling_up"
	// StateScalingDown means capacity was lowered within the cooldown window.
	StateScalingDown State = "scaling_down"
)

// Policy tunes the scaling triggers for a queue.
type Policy struct {
	// HighWaterDepth is the waiting-job count that, sustained, triggers
	// a scale-up.
	HighWaterDepth int

	// LowWaterDepth is the waiting-job count at or below which the
	// queue counts as drained for scale-down purposes.
	LowWaterDepth int

	// SustainSamples is how many consecutive metric samples must agree
	// before either trigger fires.
	SustainSamples int

	// LatencyCeiling scales up when sustained p95 latency exceeds it.
	// Zero disables the latency trigger.
	LatencyCeiling time.Duration

	// IdleRatio is the minimum idle-worker fraction required before a
	// drained queue scales down.
	IdleRatio float64

	// Step bounds how many workers one decision may add or remove.
	Step int

	// Cooldown blocks further transitions after any scaling decision.
	Cooldown time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		HighWaterDepth: 100,
		LowWaterDepth:  1,
		SustainSamples: 3,
		LatencyCeiling: 30 * time.Second,
		IdleRatio:      0.75,
		Step:           2,
		Cooldown:       time.Minute,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.HighWaterDepth <= 0 {
		p.HighWaterDepth = d.HighWaterDepth
	}
	if p.LowWaterDepth < 0 {
		p.LowWaterDepth = d.LowWaterDepth
	}
	if p.SustainSamples <= 0 {
		p.SustainSamples = d.SustainSamples
	}
	if p.IdleRatio <= 0 {
		p.IdleRatio = d.IdleRatio
	}
	if p.Step <= 0 {
		p.Step = d.Step
	}
	if p.Cooldown <= 0 {
		p.Cooldown = d.Cooldown
	}
	return p
}

// queueScale is the per-queue state machine record.
type queueScale struct {
	state          State
	lastTransition time.Time
}

// Autoscaler converges each queue's desired-worker count toward
// observed pressure. Decisions are bounded steps, clamped to the
// queue's [MinWorkers, MaxWorkers], and separated by a cooldown so a
// sustained breach cannot stack transitions.
type Autoscaler struct {
	registry   *queue.Registry
	metrics    *metrics.Store
	pools      map[string]*worker.Pool
	extensions *ext.Registry
	logger     *slog.Logger

	policy    Policy
	overrides map[string]Policy
	tick      time.Duration
	now       func() time.Time
	leader    func() bool

	mu      sync.Mutex
	states  map[string]*queueScale
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures an Autoscaler.
type Option func(*Autoscaler)

// WithPolicy replaces the default policy for all queues.
func WithPolicy(p Policy) Option {
	return func(a *Autoscaler) { a.policy = p.withDefaults() }
}

// WithQueuePolicy overrides the policy for one queue.
func WithQueuePolicy(queueName string, p Policy) Option {
	return func(a *Autoscaler) { a.overrides[queueName] = p.withDefaults() }
}

// WithTick overrides the evaluation cadence (default 15s).
func WithTick(d time.Duration) Option {
	return func(a *Autoscaler) { a.tick = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Autoscaler) { a.now = now }
}

// WithLeaderFunc gates scheduled evaluation on cluster leadership, so a
// multi-node fleet runs exactly one scaling loop. Direct Evaluate calls
// are not gated.
func WithLeaderFunc(fn func() bool) Option {
	return func(a *Autoscaler) { a.leader = fn }
}

// NewAutoscaler creates an Autoscaler over the given pools.
func NewAutoscaler(
	registry *queue.Registry,
	ms *metrics.Store,
	pools map[string]*worker.Pool,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Autoscaler {
	a := &Autoscaler{
		registry:   registry,
		metrics:    ms,
		pools:      pools,
		extensions: extensions,
		logger:     logger,
		policy:     DefaultPolicy(),
		overrides:  make(map[string]Policy),
		tick:       15 * time.Second,
		now:        time.Now,
		states:     make(map[string]*queueScale),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the evaluation loop.
func (a *Autoscaler) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	go a.loop(ctx)
	return nil
}

// Stop halts the evaluation loop.
func (a *Autoscaler) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	close(a.stopCh)
	select {
	case <-a.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Autoscaler) loop(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.leader != nil && !a.leader() {
				continue
			}
			a.Evaluate(ctx)
		}
	}
}

// State returns the queue's current scaling state.
func (a *Autoscaler) State(queueName string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.states[queueName]; ok {
		return st.state
	}
	return StateStable
}

func (a *Autoscaler) policyFor(queueName string) Policy {
	if p, ok := a.overrides[queueName]; ok {
		return p
	}
	return a.policy
}

// Evaluate runs one scaling pass over every registered queue.
func (a *Autoscaler) Evaluate(ctx context.Context) {
	for _, name := range a.registry.Names() {
		cfg, ok := a.registry.Get(name)
		if !ok || cfg.Disabled {
			continue
		}
		a.evaluateQueue(ctx, name, cfg)
	}
}

func (a *Autoscaler) evaluateQueue(ctx context.Context, name string, cfg queue.Config) {
	pol := a.policyFor(name)
	now := a.now()

	a.mu.Lock()
	st, ok := a.states[name]
	if !ok {
		st = &queueScale{state: StateStable}
		a.states[name] = st
	}
	cooling := st.state != StateStable && now.Sub(st.lastTransition) < pol.Cooldown
	if st.state != StateStable && !cooling {
		st.state = StateStable
	}
	a.mu.Unlock()

	if cooling {
		return
	}

	up := a.metrics.Sustained(name, pol.SustainSamples, func(s metrics.Sample) bool {
		return s.Waiting > pol.HighWaterDepth
	})
	if !up && pol.LatencyCeiling > 0 {
		up = a.metrics.Sustained(name, pol.SustainSamples, func(s metrics.Sample) bool {
			return s.P95 > pol.LatencyCeiling
		})
	}

	desired := a.registry.Desired(name)

	if up {
		a.transition(ctx, name, st, desired, desired+pol.Step, StateScalingUp, "up")
		return
	}

	drained := a.metrics.Sustained(name, pol.SustainSamples, func(s metrics.Sample) bool {
		return s.Waiting <= pol.LowWaterDepth
	})
	if drained && a.idleRatio(name) >= pol.IdleRatio {
		a.transition(ctx, name, st, desired, desired-pol.Step, StateScalingDown, "down")
	}
}

// transition applies one bounded, clamped scaling step. A step that the
// clamp cancels entirely (already at the bound) is not a transition and
// starts no cooldown.
func (a *Autoscaler) transition(ctx context.Context, name string, st *queueScale, from, want int, state State, direction string) {
	to := a.registry.SetDesired(name, want)
	if to == from {
		return
	}

	a.mu.Lock()
	st.state = state
	st.lastTransition = a.now()
	a.mu.Unlock()

	if pool, ok := a.pools[name]; ok {
		pool.EnsureCapacity(ctx, to)
	}

	a.logger.Info("scaling decision",
		slog.String("queue", name),
		slog.String("direction", direction),
		slog.Int("from", from),
		slog.Int("to", to),
	)
	a.extensions.EmitScaleDecision(ctx, name, from, to, direction)
}

// idleRatio is the fraction of the queue's workers currently idle.
// A queue with no workers counts as fully idle so it can still shrink
// toward MinWorkers bookkeeping-wise.
func (a *Autoscaler) idleRatio(name string) float64 {
	pool, ok := a.pools[name]
	if !ok {
		return 0
	}
	size := pool.Size()
	if size == 0 {
		return 1
	}
	return float64(pool.IdleCount()) / float64(size)
}

package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/metrics"
)

// Engine evaluates rules against the latest metric sample for every
// queue on a fixed tick, raising and updating alerts in the store.
type Engine struct {
	store   Store
	metrics *metrics.Store

	defaults  Rules
	overrides map[string]Rules

	emitter Emitter
	logger  *slog.Logger
	tick    time.Duration
	now     func() time.Time
	leader  func() bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the default threshold set.
func WithRules(r Rules) Option {
	return func(e *Engine) { e.defaults = r }
}

// WithQueueRules overrides thresholds for a single queue. Queues
// without an override use the defaults.
func WithQueueRules(queueName string, r Rules) Option {
	return func(e *Engine) { e.overrides[queueName] = r }
}

// WithEmitter wires extension hooks for raise and acknowledge events.
func WithEmitter(em Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTick sets the evaluation interval.
func WithTick(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLeaderFunc gates scheduled evaluation on cluster leadership, so a
// multi-node fleet evaluates thresholds exactly once per tick. Direct
// EvaluateSample calls are not gated.
func WithLeaderFunc(fn func() bool) Option {
	return func(e *Engine) { e.leader = fn }
}

// NewEngine builds an alert engine over the given store and metrics.
func NewEngine(store Store, ms *metrics.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		metrics:   ms,
		defaults:  DefaultRules(),
		overrides: make(map[string]Rules),
		logger:    slog.Default(),
		tick:      10 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rulesFor returns the effective rule set for a queue.
func (e *Engine) rulesFor(queueName string) Rules {
	if r, ok := e.overrides[queueName]; ok {
		return r
	}
	return e.defaults
}

// ────────────────────────────────────────────────────────────────────
// Evaluation
// ────────────────────────────────────────────────────────────────────

// EvaluateSample checks every rule against one metric sample. Breaches
// either raise a new alert or refresh the active one for that
// (queue, type); an escalation from warning to critical re-emits.
func (e *Engine) EvaluateSample(ctx context.Context, s metrics.Sample) {
	rules := e.rulesFor(s.Queue)
	checks := []struct {
		typ   Type
		value float64
	}{
		{TypeQueueDepth, float64(s.Waiting)},
		{TypeErrorRate, s.ErrorRate},
		{TypeTimeoutRate, s.TimeoutRate},
		{TypeProcessingTime, float64(s.P95.Milliseconds())},
		{TypeMemoryUsage, s.MemoryMB},
	}
	for _, c := range checks {
		th := rules.threshold(c.typ)
		sev, breached := th.Classify(c.value)
		if !breached {
			continue
		}
		if err := e.raise(ctx, s.Queue, c.typ, sev, c.value, th.boundFor(sev)); err != nil {
			e.logger.Error("alert raise failed",
				slog.String("queue", s.Queue),
				slog.String("type", string(c.typ)),
				slog.Any("error", err))
		}
	}
}

// Raise records a breach observed outside the metrics tick, such as a
// hard memory-limit violation reported by the memory monitor.
func (e *Engine) Raise(ctx context.Context, queueName string, typ Type, sev Severity, value, threshold float64) error {
	return e.raise(ctx, queueName, typ, sev, value, threshold)
}

func (e *Engine) raise(ctx context.Context, queueName string, typ Type, sev Severity, value, threshold float64) error {
	now := e.now().UTC()

	existing, err := e.store.ActiveAlert(ctx, queueName, typ)
	switch {
	case err == nil:
		escalated := existing.Severity == SeverityWarning && sev == SeverityCritical
		existing.Value = value
		existing.Threshold = threshold
		existing.UpdatedAt = now
		if escalated {
			existing.Severity = SeverityCritical
		}
		if err := e.store.SaveAlert(ctx, existing); err != nil {
			return fmt.Errorf("update alert: %w", err)
		}
		if escalated && e.emitter != nil {
			e.emitter.EmitAlertRaised(ctx, existing)
		}
		return nil

	case errors.Is(err, governor.ErrAlertNotFound):
		a := &Alert{
			ID:        id.NewAlertID(),
			Queue:     queueName,
			Type:      typ,
			Severity:  sev,
			Value:     value,
			Threshold: threshold,
			RaisedAt:  now,
			UpdatedAt: now,
		}
		if err := e.store.SaveAlert(ctx, a); err != nil {
			return fmt.Errorf("save alert: %w", err)
		}
		e.logger.Warn("alert raised",
			slog.String("alert_id", a.ID.String()),
			slog.String("queue", queueName),
			slog.String("type", string(typ)),
			slog.String("severity", string(sev)),
			slog.Float64("value", value),
			slog.Float64("threshold", threshold))
		if e.emitter != nil {
			e.emitter.EmitAlertRaised(ctx, a)
		}
		return nil

	default:
		return fmt.Errorf("lookup active alert: %w", err)
	}
}

// Acknowledge marks an alert as handled by an operator. Acknowledgment
// is terminal: the alert stops deduplicating and a later breach raises
// a fresh one.
func (e *Engine) Acknowledge(ctx context.Context, alertID id.AlertID, operator string) (*Alert, error) {
	a, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.Acknowledged {
		return nil, governor.ErrAlertAcknowledged
	}
	now := e.now().UTC()
	a.Acknowledged = true
	a.AcknowledgedBy = operator
	a.AcknowledgedAt = &now
	a.UpdatedAt = now
	if err := e.store.SaveAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("save acknowledgment: %w", err)
	}
	e.logger.Info("alert acknowledged",
		slog.String("alert_id", a.ID.String()),
		slog.String("queue", a.Queue),
		slog.String("type", string(a.Type)),
		slog.String("operator", operator))
	if e.emitter != nil {
		e.emitter.EmitAlertAcknowledged(ctx, a)
	}
	return a, nil
}

// Active returns all unacknowledged alerts.
func (e *Engine) Active(ctx context.Context) ([]*Alert, error) {
	return e.store.ListActiveAlerts(ctx)
}

// History returns alerts raised at or after since.
func (e *Engine) History(ctx context.Context, since time.Time) ([]*Alert, error) {
	return e.store.ListAlerts(ctx, since)
}

// ────────────────────────────────────────────────────────────────────
// Loop
// ────────────────────────────────────────────────────────────────────

// Start launches the evaluation loop. It is a no-op when already
// running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	go e.loop(ctx)
}

// Stop halts the evaluation loop and waits for the in-flight pass.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	done := e.doneCh
	e.mu.Unlock()

	<-done
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.leader != nil && !e.leader() {
				continue
			}
			e.evaluateAll(ctx)
		}
	}
}

// evaluateAll runs one pass over the latest sample of every queue.
func (e *Engine) evaluateAll(ctx context.Context) {
	for _, queueName := range e.metrics.Queues() {
		if s, ok := e.metrics.Snapshot(queueName); ok {
			e.EvaluateSample(ctx, s)
		}
	}
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/autoscale"
	"github.com/queueworks/governor/backend"
	"github.com/queueworks/governor/cluster"
	"github.com/queueworks/governor/cron"
	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
	"github.com/queueworks/governor/metrics"
	mw "github.com/queueworks/governor/middleware"
	"github.com/queueworks/governor/observability"
	"github.com/queueworks/governor/queue"
	"github.com/queueworks/governor/ratelimit"
	"github.com/queueworks/governor/sched"
	"github.com/queueworks/governor/timeout"
	"github.com/queueworks/governor/worker"
)

// Engine is the fully wired governor: every subsystem constructed,
// cross-connected, and registered as a lifecycle loop. Use Build to
// create one and Start/Stop to run it.
type Engine struct {
	g      *governor.Governor
	cfg    governor.Config
	logger *slog.Logger

	backend    backend.Backend
	extensions *ext.Registry
	jobs       *job.Registry
	queues     *queue.Registry
	pools      map[string]*worker.Pool
	metrics    *metrics.Store
	timeouts   *timeout.Tracker
	limiter    ratelimit.Limiter
	dlqService *dlq.Service
	alerts     *alert.Engine
	autoscaler *autoscale.Autoscaler
	scheduler  *sched.Scheduler
	monitor    *memmon.Monitor
	crons      *cron.Scheduler
	membership *cluster.Membership

	// Build-time knobs collected by options.
	queueConfigs    []queue.Config
	pendingExts     []ext.Extension
	mws             []mw.Middleware
	scalePolicies   map[string]autoscale.Policy
	defaultPolicy   *autoscale.Policy
	alertRules      *alert.Rules
	queueAlertRules map[string]alert.Rules
	mirror          metrics.Mirror
	timeoutCfg      *timeout.Config
	sampleTick      time.Duration
	clustering      bool
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider
}

// Option configures an Engine during Build.
type Option func(*Engine)

// WithQueues registers queue governance policies. At least one queue is
// required; jobs enqueued to unregistered queues are rejected.
func WithQueues(configs ...queue.Config) Option {
	return func(e *Engine) { e.queueConfigs = append(e.queueConfigs, configs...) }
}

// WithExtension registers a lifecycle extension.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) { e.pendingExts = append(e.pendingExts, x) }
}

// WithMiddleware appends middleware to the handler chain, after the
// default recover/tracing/metrics/logging stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithLimiter sets the rate limiter used for shared-resource admission.
// Defaults to the in-process sharded limiter; pass ratelimit.NewRedis
// for multi-node deployments.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithScalePolicy replaces the default autoscaler policy.
func WithScalePolicy(p autoscale.Policy) Option {
	return func(e *Engine) { e.defaultPolicy = &p }
}

// WithQueueScalePolicy overrides the autoscaler policy for one queue.
func WithQueueScalePolicy(queueName string, p autoscale.Policy) Option {
	return func(e *Engine) { e.scalePolicies[queueName] = p }
}

// WithAlertRules replaces the default alert thresholds.
func WithAlertRules(r alert.Rules) Option {
	return func(e *Engine) { e.alertRules = &r }
}

// WithQueueAlertRules overrides alert thresholds for one queue.
func WithQueueAlertRules(queueName string, r alert.Rules) Option {
	return func(e *Engine) { e.queueAlertRules[queueName] = r }
}

// WithMirror pushes every captured metric sample to an external sink,
// e.g. the redis store for cross-node dashboards or the bun store for
// history.
func WithMirror(m metrics.Mirror) Option {
	return func(e *Engine) { e.mirror = m }
}

// WithTimeoutConfig replaces the adaptive timeout tracker defaults.
func WithTimeoutConfig(cfg timeout.Config) Option {
	return func(e *Engine) { e.timeoutCfg = &cfg }
}

// WithSampleInterval sets how often the metrics collector captures a
// sample per queue. Default 10s.
func WithSampleInterval(d time.Duration) Option {
	return func(e *Engine) { e.sampleTick = d }
}

// WithClustering enables the cluster membership loop. The store must
// implement cluster.Store; autoscaling, alert evaluation, and cron
// firing then run only on the elected leader.
func WithClustering() Option {
	return func(e *Engine) { e.clustering = true }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. Defaults to the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// Build constructs an Engine on top of a Governor. The Governor's store
// must implement backend.Backend, alert.Store, dlq.Store, and
// cron.Store; cluster.Store is additionally required with
// WithClustering.
func Build(g *governor.Governor, opts ...Option) (*Engine, error) {
	store := g.Store()
	if store == nil {
		return nil, governor.ErrNoBackend
	}

	eng := &Engine{
		g:               g,
		cfg:             g.Config(),
		logger:          g.Logger(),
		jobs:            job.NewRegistry(),
		pools:           make(map[string]*worker.Pool),
		scalePolicies:   make(map[string]autoscale.Policy),
		queueAlertRules: make(map[string]alert.Rules),
		sampleTick:      10 * time.Second,
	}
	for _, opt := range opts {
		opt(eng)
	}

	be, ok := store.(backend.Backend)
	if !ok {
		return nil, fmt.Errorf("engine: store does not implement backend.Backend")
	}
	eng.backend = be
	alertStore, ok := store.(alert.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store does not implement alert.Store")
	}
	dlqStore, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store does not implement dlq.Store")
	}
	cronStore, ok := store.(cron.Store)
	if !ok {
		return nil, fmt.Errorf("engine: store does not implement cron.Store")
	}

	if len(eng.queueConfigs) == 0 {
		return nil, fmt.Errorf("engine: at least one queue config is required: %w", governor.ErrInvalidQueueConfig)
	}
	for _, cfg := range eng.queueConfigs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	eng.queues = queue.NewRegistry(eng.queueConfigs...)

	eng.extensions = ext.NewRegistry(eng.logger)
	g.SetExtensions(eng.extensions)

	if eng.limiter == nil {
		eng.limiter = ratelimit.NewMemory()
	}

	metricOpts := []metrics.Option{
		metrics.WithRetention(eng.cfg.MetricsRetention),
		metrics.WithLogger(eng.logger),
	}
	if eng.mirror != nil {
		metricOpts = append(metricOpts, metrics.WithMirror(eng.mirror))
	}
	eng.metrics = metrics.NewStore(metricOpts...)

	tcfg := timeout.DefaultConfig()
	if eng.timeoutCfg != nil {
		tcfg = *eng.timeoutCfg
	}
	eng.timeouts = timeout.NewTracker(tcfg)

	eng.dlqService = dlq.NewService(dlqStore, be)

	// Memory monitor resolves limits through the queue registry so
	// SetConfig updates take effect without a restart.
	eng.monitor = memmon.NewMonitor(
		memmon.Config{
			Interval:  eng.cfg.MemorySampleInterval,
			EveryJobs: eng.cfg.MemorySampleEveryJobs,
		},
		func(queueName string) (softMB, hardMB float64) {
			cfg, found := eng.queues.Get(queueName)
			if !found {
				return 0, 0
			}
			return float64(cfg.SoftMemoryMB), float64(cfg.HardMemoryMB)
		},
		memmon.WithLogger(eng.logger),
		memmon.WithBreachFunc(eng.onMemoryBreach),
	)

	// Default middleware stack: recover, tracing, metrics, logging,
	// then caller-supplied middleware.
	tracingMw := mw.Tracing()
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/queueworks/governor"))
	}
	metricsMw := mw.Metrics()
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/queueworks/governor"))
	}
	allMws := append([]mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	}, eng.mws...)

	obsExt := observability.NewMetricsExtension()
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(
			eng.meterProvider.Meter("github.com/queueworks/governor/observability"))
	}
	eng.extensions.Register(obsExt)
	for _, x := range eng.pendingExts {
		eng.extensions.Register(x)
	}

	executor := worker.NewExecutor(
		eng.jobs, eng.extensions, be, eng.metrics, eng.timeouts,
		eng.dlqService, eng.logger, allMws...,
	)
	for _, cfg := range eng.queueConfigs {
		eng.pools[cfg.Name] = worker.NewPool(
			cfg, executor, eng.extensions, eng.logger,
			worker.WithMonitor(eng.monitor),
		)
	}

	eng.scheduler = sched.NewScheduler(
		eng.queues, be, eng.pools, eng.extensions, eng.logger,
		sched.WithTick(eng.cfg.DispatchTick),
		sched.WithLimiter(eng.limiter),
	)
	eng.extensions.Register(eng.scheduler.WakeExtension())

	var leaderFn func() bool
	if eng.clustering {
		clusterStore, cok := store.(cluster.Store)
		if !cok {
			return nil, fmt.Errorf("engine: clustering enabled but store does not implement cluster.Store")
		}
		queueNames := make([]string, 0, len(eng.queueConfigs))
		for _, cfg := range eng.queueConfigs {
			queueNames = append(queueNames, cfg.Name)
		}
		eng.membership = cluster.NewMembership(clusterStore, eng.logger,
			cluster.WithQueues(queueNames))
		leaderFn = eng.membership.IsLeader
	}

	scaleOpts := []autoscale.Option{autoscale.WithTick(eng.cfg.AutoscaleTick)}
	if eng.defaultPolicy != nil {
		scaleOpts = append(scaleOpts, autoscale.WithPolicy(*eng.defaultPolicy))
	}
	for name, p := range eng.scalePolicies {
		scaleOpts = append(scaleOpts, autoscale.WithQueuePolicy(name, p))
	}
	if leaderFn != nil {
		scaleOpts = append(scaleOpts, autoscale.WithLeaderFunc(leaderFn))
	}
	eng.autoscaler = autoscale.NewAutoscaler(
		eng.queues, eng.metrics, eng.pools, eng.extensions, eng.logger, scaleOpts...,
	)

	alertOpts := []alert.Option{
		alert.WithEmitter(eng.extensions),
		alert.WithLogger(eng.logger),
		alert.WithTick(eng.cfg.AlertTick),
	}
	if eng.alertRules != nil {
		alertOpts = append(alertOpts, alert.WithRules(*eng.alertRules))
	}
	for name, r := range eng.queueAlertRules {
		alertOpts = append(alertOpts, alert.WithQueueRules(name, r))
	}
	if leaderFn != nil {
		alertOpts = append(alertOpts, alert.WithLeaderFunc(leaderFn))
	}
	eng.alerts = alert.NewEngine(alertStore, eng.metrics, alertOpts...)

	cronOpts := []cron.Option{}
	if leaderFn != nil {
		cronOpts = append(cronOpts, cron.WithLeaderFunc(leaderFn))
	}
	eng.crons = cron.NewScheduler(cronStore, be, eng.extensions, eng.logger, cronOpts...)

	// Lifecycle order: pools first so they drain last, membership before
	// the leader-gated loops, scheduler last so dispatch stops first.
	g.AddLoop(&poolsRunner{eng: eng})
	g.AddLoop(eng.monitor)
	g.AddLoop(&collector{eng: eng, tick: eng.sampleTick})
	if eng.membership != nil {
		g.AddLoop(eng.membership)
	}
	g.AddLoop(&alertLoop{eng: eng.alerts})
	g.AddLoop(eng.autoscaler)
	g.AddLoop(eng.crons)
	g.AddLoop(eng.scheduler)

	return eng, nil
}

// Start launches every subsystem loop. Starting twice is an error;
// starting after Stop returns ErrShuttingDown.
func (e *Engine) Start(ctx context.Context) error {
	return e.g.Start(ctx)
}

// Stop drains the pools within the configured grace period, stops every
// loop, notifies extensions, and closes the store. Idempotent.
func (e *Engine) Stop(ctx context.Context) error {
	return e.g.Stop(ctx)
}

// onMemoryBreach reacts to a worker crossing a memory threshold: the
// hook fires, the worker is scheduled for recycling, and a hard-limit
// crossing additionally raises a critical alert.
func (e *Engine) onMemoryBreach(workerID id.WorkerID, queueName string, status memmon.Status, usedMB float64) {
	ctx := context.Background()
	e.extensions.EmitMemoryPressure(ctx, workerID, queueName, status, usedMB)

	switch status {
	case memmon.ExceedsWarning:
		if p, ok := e.pools[queueName]; ok {
			p.Recycle(ctx, workerID, worker.ReasonMemorySoft)
		}
	case memmon.ExceedsCritical:
		if cfg, ok := e.queues.Get(queueName); ok {
			if err := e.alerts.Raise(ctx, queueName, alert.TypeMemoryUsage,
				alert.SeverityCritical, usedMB, float64(cfg.HardMemoryMB)); err != nil {
				e.logger.Error("raise memory alert",
					slog.String("queue", queueName),
					slog.String("error", err.Error()),
				)
			}
		}
		if p, ok := e.pools[queueName]; ok {
			p.Recycle(ctx, workerID, worker.ReasonMemoryCritical)
		}
	}
}

// ──────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────

// Register registers a typed job definition. The definition's queue
// must be one of the configured queues.
func Register[T any](e *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(e.jobs, def)
}

// Enqueue JSON-encodes payload and enqueues a job on the named queue,
// waking the dispatch loop.
func Enqueue[T any](ctx context.Context, e *Engine, name, queueName string, payload T, priority int) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	return e.EnqueueRaw(ctx, name, queueName, data, priority)
}

// EnqueueRaw enqueues a job with a pre-serialized payload.
func (e *Engine) EnqueueRaw(ctx context.Context, name, queueName string, payload []byte, priority int) (*job.Job, error) {
	cfg, ok := e.queues.Get(queueName)
	if !ok {
		return nil, governor.ErrQueueNotFound
	}
	if cfg.Disabled {
		return nil, governor.ErrQueueDisabled
	}

	j := &job.Job{
		ID:         id.NewJobID(),
		Name:       name,
		Queue:      queueName,
		Payload:    payload,
		Priority:   priority,
		State:      job.StatePending,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := e.backend.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	e.scheduler.Wake()
	return j, nil
}

// ──────────────────────────────────────────────────
// Dashboard APIs
// ──────────────────────────────────────────────────

// MetricsSnapshot returns the latest captured sample for a queue.
func (e *Engine) MetricsSnapshot(queueName string) (metrics.Sample, bool) {
	return e.metrics.Snapshot(queueName)
}

// Workers returns a point-in-time snapshot of every worker across all
// pools.
func (e *Engine) Workers() []worker.Worker {
	var out []worker.Worker
	for _, p := range e.pools {
		out = append(out, p.Workers()...)
	}
	return out
}

// InFlightExecutions returns the execution records for every job
// currently running, across all pools, with their resolved deadlines.
func (e *Engine) InFlightExecutions() []*job.Execution {
	var out []*job.Execution
	for _, p := range e.pools {
		out = append(out, p.InFlightExecutions()...)
	}
	return out
}

// ActiveAlerts returns all unacknowledged alerts, newest first.
func (e *Engine) ActiveAlerts(ctx context.Context) ([]*alert.Alert, error) {
	return e.alerts.Active(ctx)
}

// AcknowledgeAlert acknowledges an alert on behalf of an operator.
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID id.AlertID, operator string) (*alert.Alert, error) {
	return e.alerts.Acknowledge(ctx, alertID, operator)
}

// ──────────────────────────────────────────────────
// Subsystem accessors
// ──────────────────────────────────────────────────

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Jobs returns the job definition registry.
func (e *Engine) Jobs() *job.Registry { return e.jobs }

// Queues returns the queue registry for config reads and live updates.
func (e *Engine) Queues() *queue.Registry { return e.queues }

// Pool returns the worker pool for a queue, or nil when the queue is
// not configured.
func (e *Engine) Pool(queueName string) *worker.Pool { return e.pools[queueName] }

// Metrics returns the in-process metrics store.
func (e *Engine) Metrics() *metrics.Store { return e.metrics }

// Scheduler returns the dispatch scheduler.
func (e *Engine) Scheduler() *sched.Scheduler { return e.scheduler }

// Autoscaler returns the autoscaler.
func (e *Engine) Autoscaler() *autoscale.Autoscaler { return e.autoscaler }

// Alerts returns the alert engine.
func (e *Engine) Alerts() *alert.Engine { return e.alerts }

// DLQ returns the dead letter service for inspection and replay.
func (e *Engine) DLQ() *dlq.Service { return e.dlqService }

// Cron returns the cron scheduler.
func (e *Engine) Cron() *cron.Scheduler { return e.crons }

// Membership returns the cluster membership, or nil when clustering is
// disabled.
func (e *Engine) Membership() *cluster.Membership { return e.membership }

// Monitor returns the memory monitor.
func (e *Engine) Monitor() *memmon.Monitor { return e.monitor }

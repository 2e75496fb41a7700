package governor

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Governor.
type Option func(*Governor) error

// Storer is the minimal store interface held by the Governor. It covers
// lifecycle operations only; the full composite interface (store.Store)
// is used in subsystem layers that don't create import cycles.
type Storer interface {
	Ping(ctx context.Context) error
	Close() error
}

// loopRunner is an internal interface for subsystem loop lifecycle
// (scheduler, pools, autoscaler, alert engine, memory monitor).
type loopRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for shutdown notification.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Governor is the central coordinator for queue governance: dispatch,
// worker pools, autoscaling, memory recycling, and alerting.
//
// Create one with New() and functional options. The Governor holds
// references to subsystem loops via internal interfaces to avoid import
// cycles; use engine.Build to wire everything together.
type Governor struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	loops      []loopRunner

	started bool
	stopped bool
}

// New creates a Governor with the given options.
func New(opts ...Option) (*Governor, error) {
	g := &Governor{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Logger returns the governor's logger.
func (g *Governor) Logger() *slog.Logger { return g.logger }

// Store returns the governor's store.
func (g *Governor) Store() Storer { return g.store }

// Config returns a copy of the governor's configuration.
func (g *Governor) Config() Config { return g.config }

// AddLoop registers a subsystem loop (called by the engine package).
func (g *Governor) AddLoop(l loopRunner) { g.loops = append(g.loops, l) }

// SetExtensions sets the extension emitter (called by the engine package).
func (g *Governor) SetExtensions(e extensionEmitter) { g.extensions = e }

// Start launches all registered subsystem loops in registration order.
// Restarting a stopped Governor is an error.
func (g *Governor) Start(ctx context.Context) error {
	if g.stopped {
		return ErrShuttingDown
	}
	if g.started {
		return ErrAlreadyStarted
	}
	for _, l := range g.loops {
		if err := l.Start(ctx); err != nil {
			return err
		}
	}
	g.started = true
	return nil
}

// Stop shuts down all loops in reverse registration order, so the
// dispatch path stops producing work before the pools drain. Idempotent.
func (g *Governor) Stop(ctx context.Context) error {
	if g.stopped {
		return nil
	}
	g.stopped = true

	for i := len(g.loops) - 1; i >= 0; i-- {
		if err := g.loops[i].Stop(ctx); err != nil {
			g.logger.Error("loop stop error", "error", err)
		}
	}
	if g.extensions != nil {
		g.extensions.EmitShutdown(ctx)
	}
	if g.store != nil {
		return g.store.Close()
	}
	return nil
}

// WithConfig replaces the full configuration.
func WithConfig(c Config) Option {
	return func(g *Governor) error {
		g.config = c
		return nil
	}
}

// WithLogger sets the structured logger for the governor.
func WithLogger(l *slog.Logger) Option {
	return func(g *Governor) error {
		g.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the governor. Typically a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(g *Governor) error {
		g.store = s
		return nil
	}
}

// WithShutdownGrace sets the drain window applied during Stop.
func WithShutdownGrace(d time.Duration) Option {
	return func(g *Governor) error {
		g.config.ShutdownGrace = d
		return nil
	}
}

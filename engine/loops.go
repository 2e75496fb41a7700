package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/job"
)

// alertLoop adapts the alert engine's Start/Stop signatures to the
// governor's loop lifecycle.
type alertLoop struct {
	eng *alert.Engine
}

func (a *alertLoop) Start(ctx context.Context) error {
	a.eng.Start(ctx)
	return nil
}

func (a *alertLoop) Stop(context.Context) error {
	a.eng.Stop()
	return nil
}

// poolsRunner adapts the worker pools to the governor's loop lifecycle.
// Start seeds each pool to its queue's MinWorkers floor; Stop drains
// every pool concurrently within the shutdown grace window and nacks
// any stragglers with failure reason "shutdown".
type poolsRunner struct {
	eng *Engine
}

func (p *poolsRunner) Start(ctx context.Context) error {
	for name, pool := range p.eng.pools {
		if cfg, ok := p.eng.queues.Get(name); ok && cfg.MinWorkers > 0 {
			pool.EnsureCapacity(ctx, cfg.MinWorkers)
		}
	}
	return nil
}

func (p *poolsRunner) Stop(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, p.eng.cfg.ShutdownGrace)
	defer cancel()

	var (
		mu         sync.Mutex
		stragglers []*job.Job
	)
	g, gctx := errgroup.WithContext(drainCtx)
	for _, pool := range p.eng.pools {
		g.Go(func() error {
			if left := pool.Drain(gctx); len(left) > 0 {
				mu.Lock()
				stragglers = append(stragglers, left...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	// The grace window is spent; nack on the parent context so the
	// store writes still go through.
	for _, j := range stragglers {
		if err := p.eng.backend.Nack(ctx, j.ID, job.ReasonShutdown); err != nil {
			p.eng.logger.Error("nack straggler on shutdown",
				slog.String("job_id", j.ID.String()),
				slog.String("queue", j.Queue),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// collector captures one metric sample per queue on a fixed cadence:
// backend depth, pool activity, and aggregate worker memory. The alert
// engine and autoscaler evaluate these snapshots.
type collector struct {
	eng  *Engine
	tick time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func (c *collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go c.loop(ctx)
	return nil
}

func (c *collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopCh)
	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *collector) loop(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.capture(ctx)
		}
	}
}

// capture records one sample for every configured queue.
func (c *collector) capture(ctx context.Context) {
	usage := c.eng.monitor.WorkerUsage()

	for _, name := range c.eng.queues.Names() {
		pool, ok := c.eng.pools[name]
		if !ok {
			continue
		}

		waiting, err := c.eng.backend.Depth(ctx, name)
		if err != nil {
			c.eng.logger.Warn("read queue depth",
				slog.String("queue", name),
				slog.String("error", err.Error()),
			)
			continue
		}

		var memMB float64
		for _, w := range pool.Workers() {
			memMB += usage[w.ID.String()]
		}

		c.eng.metrics.Capture(ctx, name, waiting, pool.ActiveCount(), 0, memMB)
	}
}

package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/memmon"
	"github.com/queueworks/governor/queue"
)

// workerState is the pool's mutable record of one worker goroutine.
// All fields except the channels are guarded by the pool mutex.
type workerState struct {
	id            id.WorkerID
	startedAt     time.Time
	state         State
	jobsProcessed int
	currentJob    *job.Job
	execution     *job.Execution
	busySince     time.Time

	// pendingRecycle is applied at the next job boundary.
	pendingRecycle RecycleReason

	jobCh  chan *job.Job
	stopCh chan struct{}
}

// Pool manages the worker goroutines for a single queue. The scheduler
// assigns jobs to idle workers; the autoscaler resizes the pool through
// EnsureCapacity; workers recycle themselves at job boundaries when
// they hit their job budget, uptime cap, or a memory limit.
type Pool struct {
	queueName  string
	executor   *Executor
	extensions *ext.Registry
	monitor    *memmon.Monitor
	logger     *slog.Logger

	mu       sync.Mutex
	cfg      queue.Config
	workers  map[string]*workerState
	desired  int
	draining bool

	wg sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithMonitor wires the memory monitor: the pool notifies it after each
// job, checks the worker's usage against the queue's limits at job
// boundaries, and forgets retired workers.
func WithMonitor(m *memmon.Monitor) PoolOption {
	return func(p *Pool) { p.monitor = m }
}

// NewPool creates a worker pool for one queue. It starts with zero
// workers; the autoscaler grows it through EnsureCapacity.
func NewPool(
	cfg queue.Config,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		queueName:  cfg.Name,
		cfg:        cfg,
		executor:   executor,
		extensions: extensions,
		logger:     logger,
		workers:    make(map[string]*workerState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Queue returns the queue this pool serves.
func (p *Pool) Queue() string { return p.queueName }

// UpdateConfig swaps in a new queue configuration. Existing workers
// pick up the new budgets at their next job boundary.
func (p *Pool) UpdateConfig(cfg queue.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// ──────────────────────────────────────────────────
// Sizing
// ──────────────────────────────────────────────────

// EnsureCapacity resizes the pool to n workers. Growth spawns workers
// immediately. Shrinking retires idle workers now and flags busy ones
// to retire at their next job boundary; in-flight jobs are never
// interrupted by a scale-down.
func (p *Pool) EnsureCapacity(ctx context.Context, n int) {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	if n < 0 {
		n = 0
	}
	p.desired = n

	var spawned []id.WorkerID
	for len(p.workers) < n {
		spawned = append(spawned, p.spawnLocked(ctx).id)
	}

	excess := len(p.workers) - n
	// Retire idle workers first.
	for _, ws := range p.workers {
		if excess <= 0 {
			break
		}
		if ws.state == StateIdle && ws.pendingRecycle == "" {
			close(ws.stopCh)
			ws.pendingRecycle = ReasonScaleDown
			excess--
		}
	}
	// Flag busy workers to exit at their job boundary.
	for _, ws := range p.workers {
		if excess <= 0 {
			break
		}
		if ws.state == StateBusy && ws.pendingRecycle == "" {
			ws.pendingRecycle = ReasonScaleDown
			excess--
		}
	}
	p.mu.Unlock()

	// Emit without holding the lock: hooks may inspect the pool.
	for _, wid := range spawned {
		p.extensions.EmitWorkerStarted(ctx, wid, p.queueName)
	}
}

// spawnLocked creates and starts one worker. Callers hold p.mu.
func (p *Pool) spawnLocked(ctx context.Context) *workerState {
	ws := &workerState{
		id:        id.NewWorkerID(),
		startedAt: time.Now().UTC(),
		state:     StateIdle,
		jobCh:     make(chan *job.Job, 1),
		stopCh:    make(chan struct{}),
	}
	p.workers[ws.id.String()] = ws
	p.wg.Add(1)
	go p.run(ctx, ws)

	p.logger.Debug("worker started",
		slog.String("worker_id", ws.id.String()),
		slog.String("queue", p.queueName),
	)
	return ws
}

// ──────────────────────────────────────────────────
// Assignment
// ──────────────────────────────────────────────────

// Assign hands a job to an idle worker. Exactly one worker receives the
// job. Returns ErrNoIdleWorker when every worker is busy and
// ErrShuttingDown once the pool is draining.
func (p *Pool) Assign(_ context.Context, j *job.Job) (id.WorkerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		return id.Nil, governor.ErrShuttingDown
	}

	for _, ws := range p.workers {
		if ws.state != StateIdle || ws.pendingRecycle != "" {
			continue
		}
		ws.state = StateBusy
		ws.currentJob = j
		ws.busySince = time.Now().UTC()
		// cap-1 channel: the send cannot block while holding the lock.
		ws.jobCh <- j
		return ws.id, nil
	}
	return id.Nil, governor.ErrNoIdleWorker
}

// ──────────────────────────────────────────────────
// Worker loop
// ──────────────────────────────────────────────────

func (p *Pool) run(ctx context.Context, ws *workerState) {
	defer p.wg.Done()

	for {
		select {
		case <-ws.stopCh:
			p.retire(ctx, ws)
			return

		case j := <-ws.jobCh:
			exec := p.executor.StartExecution(j, ws.id)
			p.mu.Lock()
			ws.execution = exec
			p.mu.Unlock()

			var heapBefore float64
			if p.monitor != nil {
				heapBefore = memmon.ReadProcessStats().HeapAllocMB
			}
			res := p.executor.Execute(ctx, j, ws.id)
			if p.monitor != nil {
				// Post-job heap delta is the worker's usage estimate.
				delta := memmon.ReadProcessStats().HeapAllocMB - heapBefore
				if delta < 0 {
					delta = 0
				}
				p.monitor.Observe(ws.id, p.queueName, delta)
			}

			reason := p.afterJob(ws, res)
			if reason != "" {
				p.recycle(ctx, ws, reason)
				return
			}
		}
	}
}

// afterJob records the boundary bookkeeping for a finished job and
// returns the recycle reason to apply, or "" to keep the worker. A
// non-empty reason is stored in pendingRecycle under the lock so a
// concurrent Assign cannot hand a new job to a worker that is about to
// exit.
func (p *Pool) afterJob(ws *workerState, res Result) RecycleReason {
	var usedMB float64
	if p.monitor != nil {
		p.monitor.JobCompleted()
		usedMB = p.monitor.WorkerUsage()[ws.id.String()]
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ws.jobsProcessed++
	ws.currentJob = nil
	ws.execution = nil
	ws.busySince = time.Time{}
	ws.state = StateIdle

	reason := p.recycleReasonLocked(ws, res, usedMB)
	if reason != "" && ws.pendingRecycle == "" {
		ws.pendingRecycle = reason
	}
	return reason
}

// recycleReasonLocked decides whether the worker survives the job
// boundary, ordered by urgency. Callers hold p.mu.
func (p *Pool) recycleReasonLocked(ws *workerState, res Result, usedMB float64) RecycleReason {
	// Hard timeout always replaces the worker because its handler
	// goroutine was abandoned.
	switch {
	case res.HardTimedOut:
		return ReasonHardTimeout
	case p.monitor != nil && memmon.Derive(usedMB, float64(p.cfg.SoftMemoryMB), float64(p.cfg.HardMemoryMB)) == memmon.ExceedsCritical:
		return ReasonMemoryCritical
	case p.monitor != nil && memmon.Derive(usedMB, float64(p.cfg.SoftMemoryMB), float64(p.cfg.HardMemoryMB)) == memmon.ExceedsWarning:
		return ReasonMemorySoft
	case p.cfg.MaxJobsPerWorker > 0 && ws.jobsProcessed >= p.cfg.MaxJobsPerWorker:
		return ReasonJobCount
	case p.cfg.MaxWorkerUptime > 0 && time.Since(ws.startedAt) >= p.cfg.MaxWorkerUptime:
		return ReasonUptime
	case ws.pendingRecycle != "":
		return ws.pendingRecycle
	case p.draining:
		return ReasonShutdown
	default:
		return ""
	}
}

// recycle retires a worker and spawns a replacement unless the pool is
// shrinking or draining.
func (p *Pool) recycle(ctx context.Context, ws *workerState, reason RecycleReason) {
	p.mu.Lock()
	ws.state = StateRetired
	delete(p.workers, ws.id.String())
	replace := !p.draining && reason != ReasonScaleDown && reason != ReasonShutdown && len(p.workers) < p.desired
	var successor id.WorkerID
	if replace {
		successor = p.spawnLocked(ctx).id
	}
	p.mu.Unlock()

	if p.monitor != nil {
		p.monitor.Forget(ws.id)
	}

	p.logger.Info("worker recycled",
		slog.String("worker_id", ws.id.String()),
		slog.String("queue", p.queueName),
		slog.String("reason", string(reason)),
		slog.Int("jobs_processed", ws.jobsProcessed),
		slog.Duration("uptime", time.Since(ws.startedAt)),
	)
	p.extensions.EmitWorkerRecycled(ctx, ws.id, p.queueName, string(reason))
	if replace {
		p.extensions.EmitWorkerStarted(ctx, successor, p.queueName)
	}
}

// retire removes a worker that exited without a replacement (scale-down
// or drain).
func (p *Pool) retire(ctx context.Context, ws *workerState) {
	p.mu.Lock()
	ws.state = StateRetired
	delete(p.workers, ws.id.String())
	reason := ws.pendingRecycle
	if reason == "" {
		reason = ReasonShutdown
	}
	p.mu.Unlock()

	if p.monitor != nil {
		p.monitor.Forget(ws.id)
	}
	p.extensions.EmitWorkerRecycled(ctx, ws.id, p.queueName, string(reason))
}

// Recycle flags a worker for replacement. Idle workers are replaced
// immediately; busy workers finish their current job first.
func (p *Pool) Recycle(ctx context.Context, workerID id.WorkerID, reason RecycleReason) {
	p.mu.Lock()
	ws, ok := p.workers[workerID.String()]
	if !ok {
		p.mu.Unlock()
		return
	}
	if ws.state == StateIdle && ws.pendingRecycle == "" {
		// Replace now: stop the goroutine and spawn a successor.
		close(ws.stopCh)
		ws.pendingRecycle = reason
		var successor id.WorkerID
		if !p.draining && len(p.workers)-1 < p.desired {
			successor = p.spawnLocked(ctx).id
		}
		p.mu.Unlock()
		if !successor.IsNil() {
			p.extensions.EmitWorkerStarted(ctx, successor, p.queueName)
		}
		return
	}
	if ws.pendingRecycle == "" {
		ws.pendingRecycle = reason
	}
	p.mu.Unlock()
}

// ──────────────────────────────────────────────────
// Introspection
// ──────────────────────────────────────────────────

// Size returns the number of live workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IdleCount returns the number of workers ready for an assignment.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ws := range p.workers {
		if ws.state == StateIdle && ws.pendingRecycle == "" {
			n++
		}
	}
	return n
}

// ActiveCount returns the number of workers executing a job.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ws := range p.workers {
		if ws.state == StateBusy {
			n++
		}
	}
	return n
}

// Workers returns a point-in-time snapshot of every live worker,
// ordered by start time.
func (p *Pool) Workers() []Worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Worker, 0, len(p.workers))
	for _, ws := range p.workers {
		w := Worker{
			ID:            ws.id,
			Queue:         p.queueName,
			State:         ws.state,
			StartedAt:     ws.startedAt,
			JobsProcessed: ws.jobsProcessed,
			BusySince:     ws.busySince,
		}
		if ws.currentJob != nil {
			w.CurrentJobID = ws.currentJob.ID
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(out[k].StartedAt) })
	return out
}

// InFlightExecutions returns the transient execution records for jobs
// currently being executed, with their resolved deadlines. This is the
// dashboard surface for in-flight work.
func (p *Pool) InFlightExecutions() []*job.Execution {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*job.Execution
	for _, ws := range p.workers {
		if ws.execution != nil {
			cp := *ws.execution
			out = append(out, &cp)
		}
	}
	return out
}

// InFlight returns the jobs currently being executed.
func (p *Pool) InFlight() []*job.Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*job.Job
	for _, ws := range p.workers {
		if ws.currentJob != nil {
			cp := *ws.currentJob
			out = append(out, &cp)
		}
	}
	return out
}

// ──────────────────────────────────────────────────
// Drain
// ──────────────────────────────────────────────────

// Drain stops the pool: no new assignments are accepted, idle workers
// exit immediately, and busy workers finish their current job. It
// waits until every worker exits or ctx expires, and returns the jobs
// still in flight at that point so the caller can nack them.
func (p *Pool) Drain(ctx context.Context) []*job.Job {
	p.mu.Lock()
	p.draining = true
	for _, ws := range p.workers {
		if ws.state == StateIdle {
			select {
			case <-ws.stopCh:
			default:
				close(ws.stopCh)
			}
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		stragglers := p.InFlight()
		p.logger.Warn("pool drain timed out",
			slog.String("queue", p.queueName),
			slog.Int("in_flight", len(stragglers)),
		)
		return stragglers
	}
}

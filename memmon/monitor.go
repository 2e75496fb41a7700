package memmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/queueworks/governor/id"
)

// LimitResolver returns the (softMB, hardMB) memory limits for a queue.
// The engine binds this to the queue registry.
type LimitResolver func(queueName string) (softMB, hardMB float64)

// BreachFunc is invoked when a worker's usage crosses a limit. status
// is ExceedsWarning or ExceedsCritical, never WithinLimits.
type BreachFunc func(workerID id.WorkerID, queueName string, status Status, usedMB float64)

// ProcessFunc is invoked after each process-wide sample.
type ProcessFunc func(stats ProcessStats, status Status)

// Config tunes the sampling loop.
type Config struct {
	// Interval is the wall-clock sampling cadence.
	Interval time.Duration

	// EveryJobs also triggers a sample after this many completed jobs,
	// whichever comes first. Zero disables the job-count trigger.
	EveryJobs int

	// ProcessSoftMB and ProcessHardMB bound aggregate process memory.
	// Zero disables process-level thresholds.
	ProcessSoftMB float64
	ProcessHardMB float64
}

// workerReading is the last usage report for one live worker.
type workerReading struct {
	queue  string
	usedMB float64
	at     time.Time
}

// Monitor runs the sampling loop and re-derives worker status from the
// most recent readings.
type Monitor struct {
	cfg     Config
	resolve LimitResolver
	logger  *slog.Logger

	onBreach  BreachFunc
	onProcess ProcessFunc

	mu       sync.Mutex
	workers  map[string]workerReading
	jobCount int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	runMu   sync.Mutex
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithBreachFunc sets the worker-breach callback (the engine binds it
// to the worker pool's recycle flag).
func WithBreachFunc(f BreachFunc) Option {
	return func(m *Monitor) { m.onBreach = f }
}

// WithProcessFunc sets the process-sample callback.
func WithProcessFunc(f ProcessFunc) Option {
	return func(m *Monitor) { m.onProcess = f }
}

// NewMonitor creates a Monitor. resolve must not be nil.
func NewMonitor(cfg Config, resolve LimitResolver, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	m := &Monitor{
		cfg:     cfg,
		resolve: resolve,
		logger:  slog.Default(),
		workers: make(map[string]workerReading),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe records a worker's usage report and derives its status
// immediately, firing the breach callback on a limit crossing.
func (m *Monitor) Observe(workerID id.WorkerID, queueName string, usedMB float64) Status {
	m.mu.Lock()
	m.workers[workerID.String()] = workerReading{queue: queueName, usedMB: usedMB, at: time.Now()}
	m.mu.Unlock()

	soft, hard := m.resolve(queueName)
	status := Derive(usedMB, soft, hard)
	if status != WithinLimits && m.onBreach != nil {
		m.onBreach(workerID, queueName, status, usedMB)
	}
	return status
}

// Forget drops a worker's reading after it terminates.
func (m *Monitor) Forget(workerID id.WorkerID) {
	m.mu.Lock()
	delete(m.workers, workerID.String())
	m.mu.Unlock()
}

// JobCompleted counts toward the every-N-jobs sampling trigger.
func (m *Monitor) JobCompleted() {
	if m.cfg.EveryJobs <= 0 {
		return
	}
	m.mu.Lock()
	m.jobCount++
	trigger := m.jobCount >= m.cfg.EveryJobs
	if trigger {
		m.jobCount = 0
	}
	m.mu.Unlock()

	if trigger {
		m.sample()
	}
}

// WorkerUsage returns the last reported usage per worker ID.
func (m *Monitor) WorkerUsage() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.workers))
	for wid, r := range m.workers {
		out[wid] = r.usedMB
	}
	return out
}

// Start launches the sampling loop.
func (m *Monitor) Start(_ context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nil
	}
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop terminates the sampling loop.
func (m *Monitor) Stop(_ context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.wg.Wait()
	return nil
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample reads process memory, reports it, and re-derives every live
// worker's status from its last reading.
func (m *Monitor) sample() {
	stats := ReadProcessStats()
	procStatus := Derive(stats.UsedMB(), m.cfg.ProcessSoftMB, m.cfg.ProcessHardMB)

	if procStatus != WithinLimits {
		m.logger.Warn("process memory pressure",
			slog.String("status", procStatus.String()),
			slog.Float64("used_mb", stats.UsedMB()),
			slog.Float64("heap_mb", stats.HeapAllocMB),
		)
	}
	if m.onProcess != nil {
		m.onProcess(stats, procStatus)
	}

	m.mu.Lock()
	readings := make(map[string]workerReading, len(m.workers))
	for wid, r := range m.workers {
		readings[wid] = r
	}
	m.mu.Unlock()

	for wid, r := range readings {
		soft, hard := m.resolve(r.queue)
		status := Derive(r.usedMB, soft, hard)
		if status != WithinLimits && m.onBreach != nil {
			workerID, err := id.ParseWorkerID(wid)
			if err != nil {
				continue
			}
			m.onBreach(workerID, r.queue, status, r.usedMB)
		}
	}
}

package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Mirror receives every captured sample for cross-host visibility.
// store/redis provides an implementation; dashboards on other hosts
// read from there. Push must be cheap; the store calls it inline on
// capture and logs (never propagates) its errors.
type Mirror interface {
	Push(ctx context.Context, s Sample) error
}

// latencyWindow bounds how many recent execution durations feed the
// percentile calculations.
const latencyWindow = 1024

// completionWindow bounds how many completion timestamps are kept for
// the jobs-per-minute rate.
const completionWindow = 4096

// queueMetrics is the mutable per-queue state. Guarded by its own mutex
// so unrelated queues never contend.
type queueMetrics struct {
	mu sync.Mutex

	completed    uint64
	failed       uint64
	softTimeouts uint64
	hardTimeouts uint64

	// Counter values at the previous capture, for per-interval rates.
	lastCompleted    uint64
	lastFailed       uint64
	lastHardTimeouts uint64

	latencies   *durationRing
	completions *timeRing

	samples []Sample
}

func newQueueMetrics() *queueMetrics {
	return &queueMetrics{
		latencies:   newDurationRing(latencyWindow),
		completions: newTimeRing(completionWindow),
	}
}

// Option configures a Store.
type Option func(*Store)

// WithRetention bounds sample history by age.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// WithMaxSamples bounds sample history by count per queue.
func WithMaxSamples(n int) Option {
	return func(s *Store) { s.maxSamples = n }
}

// WithMirror mirrors every captured sample (e.g., to Redis for
// cross-host dashboards).
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store holds rolling-window metrics for every queue.
type Store struct {
	mu     sync.RWMutex
	queues map[string]*queueMetrics

	retention  time.Duration
	maxSamples int
	mirror     Mirror
	logger     *slog.Logger
}

// NewStore creates a metrics store. Defaults: 7 day retention, 10080
// samples per queue (one per minute for a week).
func NewStore(opts ...Option) *Store {
	s := &Store{
		queues:     make(map[string]*queueMetrics),
		retention:  7 * 24 * time.Hour,
		maxSamples: 10080,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// queue returns (lazily creating) the per-queue state.
func (s *Store) queue(name string) *queueMetrics {
	s.mu.RLock()
	qm, ok := s.queues[name]
	s.mu.RUnlock()
	if ok {
		return qm
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if qm, ok = s.queues[name]; ok {
		return qm
	}
	qm = newQueueMetrics()
	s.queues[name] = qm
	return qm
}

// RecordCompletion records a successful job with its execution duration.
func (s *Store) RecordCompletion(queueName string, d time.Duration) {
	qm := s.queue(queueName)
	qm.mu.Lock()
	qm.completed++
	qm.latencies.push(d)
	qm.completions.push(time.Now())
	qm.mu.Unlock()
}

// RecordFailure records a terminally failed job. Failed executions still
// contribute their duration to the latency window when d > 0.
func (s *Store) RecordFailure(queueName string, d time.Duration) {
	qm := s.queue(queueName)
	qm.mu.Lock()
	qm.failed++
	if d > 0 {
		qm.latencies.push(d)
	}
	qm.mu.Unlock()
}

// RecordSoftTimeout records a soft-deadline breach (job kept running).
func (s *Store) RecordSoftTimeout(queueName string) {
	qm := s.queue(queueName)
	qm.mu.Lock()
	qm.softTimeouts++
	qm.mu.Unlock()
}

// RecordHardTimeout records a hard-deadline forced termination.
func (s *Store) RecordHardTimeout(queueName string) {
	qm := s.queue(queueName)
	qm.mu.Lock()
	qm.hardTimeouts++
	qm.mu.Unlock()
}

// Counters returns the lifetime completed/failed/soft/hard counts.
func (s *Store) Counters(queueName string) (completed, failed, softTimeouts, hardTimeouts uint64) {
	qm := s.queue(queueName)
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.completed, qm.failed, qm.softTimeouts, qm.hardTimeouts
}

// Capture builds a full Sample for a queue from the live counters plus
// the caller-supplied gauges (backend depth, pool active count, process
// memory), appends it to history, and returns it.
//
// Error and timeout rates are per capture interval: failures (or hard
// timeouts) divided by all executions since the previous capture.
func (s *Store) Capture(ctx context.Context, queueName string, waiting, active, delayed int, memoryMB float64) Sample {
	qm := s.queue(queueName)
	now := time.Now().UTC()

	qm.mu.Lock()

	intervalCompleted := qm.completed - qm.lastCompleted
	intervalFailed := qm.failed - qm.lastFailed
	intervalHard := qm.hardTimeouts - qm.lastHardTimeouts
	qm.lastCompleted = qm.completed
	qm.lastFailed = qm.failed
	qm.lastHardTimeouts = qm.hardTimeouts

	total := intervalCompleted + intervalFailed
	var errorRate, timeoutRate float64
	if total > 0 {
		errorRate = float64(intervalFailed) / float64(total)
		timeoutRate = float64(intervalHard) / float64(total)
	}

	lat := qm.latencies.snapshot()

	sample := Sample{
		Queue:         queueName,
		Timestamp:     now,
		Waiting:       waiting,
		Active:        active,
		Delayed:       delayed,
		Failed:        int(qm.failed),
		Completed:     int(qm.completed),
		JobsPerMinute: float64(qm.completions.countSince(now.Add(-time.Minute))),
		ErrorRate:     errorRate,
		TimeoutRate:   timeoutRate,
		P50:           Percentile(lat, 0.50),
		P95:           Percentile(lat, 0.95),
		P99:           Percentile(lat, 0.99),
		MemoryMB:      memoryMB,
	}

	qm.samples = append(qm.samples, sample)
	s.evictLocked(qm, now)
	qm.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Push(ctx, sample); err != nil {
			s.logger.Warn("metrics mirror push failed",
				slog.String("queue", queueName),
				slog.String("error", err.Error()),
			)
		}
	}

	return sample
}

// evictLocked drops samples past retention or beyond the count cap.
// Caller holds qm.mu.
func (s *Store) evictLocked(qm *queueMetrics, now time.Time) {
	cutoff := now.Add(-s.retention)
	drop := 0
	for drop < len(qm.samples) && qm.samples[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if over := len(qm.samples) - drop - s.maxSamples; over > 0 {
		drop += over
	}
	if drop > 0 {
		qm.samples = append(qm.samples[:0], qm.samples[drop:]...)
	}
}

// Snapshot returns the most recent sample for a queue.
func (s *Store) Snapshot(queueName string) (Sample, bool) {
	qm := s.queue(queueName)
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if len(qm.samples) == 0 {
		return Sample{}, false
	}
	return qm.samples[len(qm.samples)-1], true
}

// History returns all samples for a queue at or after since, oldest first.
func (s *Store) History(queueName string, since time.Time) []Sample {
	qm := s.queue(queueName)
	qm.mu.Lock()
	defer qm.mu.Unlock()

	out := make([]Sample, 0, len(qm.samples))
	for _, sm := range qm.samples {
		if !sm.Timestamp.Before(since) {
			out = append(out, sm)
		}
	}
	return out
}

// Sustained reports whether the last n samples all satisfy pred. It is
// false when fewer than n samples exist; hysteresis never fires on a
// cold queue.
func (s *Store) Sustained(queueName string, n int, pred func(Sample) bool) bool {
	if n <= 0 {
		return false
	}
	qm := s.queue(queueName)
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if len(qm.samples) < n {
		return false
	}
	for _, sm := range qm.samples[len(qm.samples)-n:] {
		if !pred(sm) {
			return false
		}
	}
	return true
}

// Latencies returns a copy of the current latency window for a queue.
func (s *Store) Latencies(queueName string) []time.Duration {
	qm := s.queue(queueName)
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.latencies.snapshot()
}

// Queues returns the names of all queues with recorded metrics.
func (s *Store) Queues() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	return names
}

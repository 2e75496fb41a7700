package timeout

import (
	"sync"
	"time"

	"github.com/queueworks/governor/metrics"
)

// Config tunes deadline derivation. Zero values fall back to defaults.
type Config struct {
	// SampleWindow bounds the per-queue duration ring.
	SampleWindow int

	// MinSamples is the history needed before adaptive deadlines apply;
	// below it the Cold* defaults are used.
	MinSamples int

	// SoftFactor scales p95 into the soft deadline, HardFactor scales
	// p99 into the hard deadline.
	SoftFactor float64
	HardFactor float64

	// SoftFloor and HardFloor are the minimum deadlines ever returned;
	// they keep fast queues from strangling themselves after a burst of
	// sub-millisecond jobs.
	SoftFloor time.Duration
	HardFloor time.Duration

	// ColdSoft and ColdHard are the static deadlines used before
	// MinSamples of history accrue.
	ColdSoft time.Duration
	ColdHard time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SampleWindow: 1000,
		MinSamples:   20,
		SoftFactor:   2,
		HardFactor:   4,
		SoftFloor:    time.Second,
		HardFloor:    5 * time.Second,
		ColdSoft:     30 * time.Second,
		ColdHard:     2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleWindow <= 0 {
		c.SampleWindow = d.SampleWindow
	}
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	if c.SoftFactor <= 0 {
		c.SoftFactor = d.SoftFactor
	}
	if c.HardFactor <= 0 {
		c.HardFactor = d.HardFactor
	}
	if c.SoftFloor <= 0 {
		c.SoftFloor = d.SoftFloor
	}
	if c.HardFloor <= 0 {
		c.HardFloor = d.HardFloor
	}
	if c.ColdSoft <= 0 {
		c.ColdSoft = d.ColdSoft
	}
	if c.ColdHard <= 0 {
		c.ColdHard = d.ColdHard
	}
	return c
}

// ring is a bounded sample window. Callers hold the Tracker lock.
type ring struct {
	buf  []time.Duration
	next int
	full bool
}

func (r *ring) push(d time.Duration) {
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

func (r *ring) snapshot() []time.Duration {
	out := make([]time.Duration, r.len())
	copy(out, r.buf[:r.len()])
	return out
}

// Tracker maintains per-queue execution-time history and computes
// adaptive deadlines. Safe for concurrent use.
type Tracker struct {
	cfg    Config
	mu     sync.Mutex
	queues map[string]*ring
}

// NewTracker creates a Tracker with the given config.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:    cfg.withDefaults(),
		queues: make(map[string]*ring),
	}
}

// Record adds one observed execution duration for a queue.
func (t *Tracker) Record(queueName string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.queues[queueName]
	if !ok {
		r = &ring{buf: make([]time.Duration, t.cfg.SampleWindow)}
		t.queues[queueName] = r
	}
	r.push(d)
}

// SampleCount returns how much history a queue has accrued.
func (t *Tracker) SampleCount(queueName string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.queues[queueName]; ok {
		return r.len()
	}
	return 0
}

// Deadlines returns the (soft, hard) execution bounds for a queue.
// Both respect their floors and hard is always >= soft.
func (t *Tracker) Deadlines(queueName string) (soft, hard time.Duration) {
	t.mu.Lock()
	r, ok := t.queues[queueName]
	var samples []time.Duration
	if ok {
		samples = r.snapshot()
	}
	t.mu.Unlock()

	if len(samples) < t.cfg.MinSamples {
		return t.cfg.ColdSoft, maxDuration(t.cfg.ColdHard, t.cfg.ColdSoft)
	}

	soft = time.Duration(float64(metrics.Percentile(samples, 0.95)) * t.cfg.SoftFactor)
	hard = time.Duration(float64(metrics.Percentile(samples, 0.99)) * t.cfg.HardFactor)

	soft = maxDuration(soft, t.cfg.SoftFloor)
	hard = maxDuration(hard, t.cfg.HardFloor)
	hard = maxDuration(hard, soft)
	return soft, hard
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

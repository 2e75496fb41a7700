package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

// bucket holds the two-window state for one resource key.
type bucket struct {
	windowStart time.Time
	current     int
	previous    int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Memory is an in-process sliding-window limiter. Keys are sharded by
// hash so hot resources never serialize unrelated ones.
type Memory struct {
	shards [shardCount]*shard
	now    func() time.Time
}

var _ Limiter = (*Memory)(nil)

// MemoryOption configures the Memory limiter.
type MemoryOption func(*Memory)

// WithMemoryClock swaps the clock used for window arithmetic (tests).
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-process limiter.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now}
	for i := range m.shards {
		m.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) shard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// TryAcquire implements Limiter with an overlapping-window weighted count.
func (m *Memory) TryAcquire(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := m.now()
	windowStart := now.Truncate(window)

	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[key]
	if !ok {
		b = &bucket{windowStart: windowStart}
		sh.buckets[key] = b
	}

	// Rotate windows that have elapsed since the last call.
	switch {
	case b.windowStart.Equal(windowStart):
		// Still inside the stored window.
	case windowStart.Sub(b.windowStart) < 2*window:
		// Exactly one window boundary crossed: current becomes previous.
		b.previous = b.current
		b.current = 0
		b.windowStart = windowStart
	default:
		// Idle long enough that both windows expired.
		b.previous = 0
		b.current = 0
		b.windowStart = windowStart
	}

	// Weight the previous window by its remaining overlap with the
	// sliding window ending now.
	elapsed := float64(now.Sub(windowStart)) / float64(window)
	weighted := float64(b.current) + float64(b.previous)*(1-elapsed)

	resetAt := windowStart.Add(window)
	if weighted+1 > float64(limit) {
		return Decision{Allowed: false, Remaining: remaining(limit, weighted), ResetAt: resetAt}, nil
	}

	b.current++
	return Decision{Allowed: true, Remaining: remaining(limit, weighted+1), ResetAt: resetAt}, nil
}

func remaining(limit int, weighted float64) int {
	r := limit - int(weighted+0.5)
	if r < 0 {
		return 0
	}
	return r
}

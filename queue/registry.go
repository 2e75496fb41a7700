package queue

import (
	"sort"
	"sync"

	"golang.org/x/time/rate"
)

// queueState tracks runtime state for a single queue.
type queueState struct {
	config   Config
	throttle *rate.Limiter
	desired  int
}

func newQueueState(cfg Config) *queueState {
	qs := &queueState{config: cfg, desired: cfg.MinWorkers}
	if cfg.DispatchRate > 0 {
		burst := cfg.DispatchBurst
		if burst <= 0 {
			burst = 1
		}
		qs.throttle = rate.NewLimiter(rate.Limit(cfg.DispatchRate), burst)
	}
	return qs
}

// Registry holds the governance policy for every registered queue and
// the per-queue dispatch throttle. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*queueState
}

// NewRegistry creates a Registry with the given queue configurations.
// Configs are assumed validated (engine.Build calls Config.Validate).
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{queues: make(map[string]*queueState, len(configs))}
	for _, cfg := range configs {
		r.queues[cfg.Name] = newQueueState(cfg)
	}
	return r
}

// Get returns the policy snapshot for a queue. The second return is
// false when the queue is not registered.
func (r *Registry) Get(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	qs, ok := r.queues[name]
	if !ok {
		return Config{}, false
	}
	return qs.config, true
}

// SetConfig atomically swaps (or creates) a queue's policy. The current
// desired-worker count survives the swap, re-clamped to the new bounds.
func (r *Registry) SetConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	qs := newQueueState(cfg)
	if existing, ok := r.queues[cfg.Name]; ok {
		qs.desired = clamp(existing.desired, cfg.MinWorkers, cfg.MaxWorkers)
	}
	r.queues[cfg.Name] = qs
}

// Names returns all registered queue names in tier order, most critical
// first; ties break alphabetically for determinism.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := r.queues[names[i]].config.Tier, r.queues[names[j]].config.Tier
		if ti != tj {
			return ti < tj
		}
		return names[i] < names[j]
	})
	return names
}

// ByTier groups enabled queue names by tier, in dispatch order.
func (r *Registry) ByTier() map[Tier][]string {
	out := make(map[Tier][]string)
	for _, name := range r.Names() {
		cfg, _ := r.Get(name)
		if cfg.Disabled {
			continue
		}
		out[cfg.Tier] = append(out[cfg.Tier], name)
	}
	return out
}

// AllowDispatch consults the queue's local token-bucket throttle.
// Queues without a DispatchRate always allow.
func (r *Registry) AllowDispatch(name string) bool {
	r.mu.RLock()
	qs, ok := r.queues[name]
	r.mu.RUnlock()
	if !ok || qs.throttle == nil {
		return true
	}
	return qs.throttle.Allow()
}

// Desired returns the queue's current desired-worker count.
func (r *Registry) Desired(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if qs, ok := r.queues[name]; ok {
		return qs.desired
	}
	return 0
}

// SetDesired records a new desired-worker count, clamped to the queue's
// [MinWorkers, MaxWorkers]. Returns the clamped value actually stored.
func (r *Registry) SetDesired(name string, n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	qs, ok := r.queues[name]
	if !ok {
		return 0
	}
	qs.desired = clamp(n, qs.config.MinWorkers, qs.config.MaxWorkers)
	return qs.desired
}

// GlobalCap is the sum of every enabled queue's MaxWorkers, the hard
// ceiling on live workers across the whole process.
func (r *Registry) GlobalCap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, qs := range r.queues {
		if !qs.config.Disabled {
			total += qs.config.MaxWorkers
		}
	}
	return total
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

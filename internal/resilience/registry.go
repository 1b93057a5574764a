package resilience

import (
	"sort"
	"sync"
)

// Registry owns the process-wide breakers, one per backend. It is created at
// startup and lives until shutdown; breaker state resets only on restart.
type Registry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	opts     []Option
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty registry. Every breaker it creates shares cfg
// and opts.
func NewRegistry(cfg BreakerConfig, opts ...Option) *Registry {
	return &Registry{
		cfg:      cfg,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Breaker returns the breaker for name, creating it on first use.
func (r *Registry) Breaker(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, r.cfg, r.opts...)
	r.breakers[name] = cb
	return cb
}

// BreakerStatus is a point-in-time view of one breaker.
type BreakerStatus struct {
	Name     string `json:"name"`
	State    State  `json:"state"`
	Failures int    `json:"failures"`
}

// Snapshot lists every breaker sorted by name.
func (r *Registry) Snapshot() []BreakerStatus {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)

	out := make([]BreakerStatus, 0, len(names))
	for _, name := range names {
		cb := r.Breaker(name)
		out = append(out, BreakerStatus{Name: name, State: cb.State(), Failures: cb.Failures()})
	}
	return out
}

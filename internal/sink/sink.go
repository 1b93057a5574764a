// Package sink manages the consumers that receive every answered query.
package sink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soyeahso/rewardbot/internal/hooks"
	"github.com/soyeahso/rewardbot/internal/logging"
)

// Sink consumes answered queries through a query_answered hook.
type Sink interface {
	// Name identifies the sink in logs and in the hook table.
	Name() string

	// Hook returns the handler attached to query_answered.
	Hook() hooks.Handler

	// Close releases the sink's resources. It runs after in-flight hooks finish.
	Close() error
}

// Registry manages sink lifecycle.
type Registry struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	order    []string // insertion order for deterministic lifecycle
	attached bool
	hooks    *hooks.Manager
	log      *logging.Logger
}

// NewRegistry creates a sink registry.
func NewRegistry(hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{
		sinks: make(map[string]Sink),
		hooks: hm,
		log:   log.Sub("sinks"),
	}
}

// Register adds a sink to the registry without attaching it.
func (r *Registry) Register(s Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[s.Name()]; exists {
		return fmt.Errorf("sink already registered: %s", s.Name())
	}
	r.sinks[s.Name()] = s
	r.order = append(r.order, s.Name())

	r.log.Debug().Str("sink", s.Name()).Msg("sink registered")
	return nil
}

// AttachAll hooks every registered sink to query_answered in registration order.
func (r *Registry) AttachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		r.hooks.On(hooks.EventQueryAnswered, name, r.sinks[name].Hook())
	}
	r.attached = true
	r.log.Info().Strs("sinks", r.order).Msg("answer sinks attached")
}

// CloseAll detaches the sinks, waits for in-flight hooks and closes the
// sinks in reverse registration order.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attached {
		for _, name := range r.order {
			r.hooks.Off(hooks.EventQueryAnswered, name)
		}
		r.attached = false
	}
	r.hooks.Wait()

	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if err := r.sinks[name].Close(); err != nil {
			r.log.Error().Err(err).Str("sink", name).Msg("sink close error")
			errs = append(errs, fmt.Errorf("close sink %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Get returns a sink by name, or nil if not found.
func (r *Registry) Get(name string) Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sinks[name]
}

// List returns all registered sink names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered sinks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

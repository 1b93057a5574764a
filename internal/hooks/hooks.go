// Package hooks dispatches query and server lifecycle events to registered
// handlers such as the history store and the event publisher.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/logging"
)

// Event names for the hook system.
const (
	EventQueryReceived = "query_received"
	EventQueryAnswered = "query_answered"
	EventServerStart   = "server_start"
	EventServerStop    = "server_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventQueryReceived,
	EventQueryAnswered,
	EventServerStart,
	EventServerStop,
}

// Payload carries event data to hook handlers. Query events set Query and,
// once answered, Answer and Intents; server events use Data.
type Payload struct {
	Event   string         `json:"event"`
	Query   *domain.Query  `json:"query,omitempty"`
	Answer  *domain.Answer `json:"answer,omitempty"`
	Intents []string       `json:"intents,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	inflight sync.WaitGroup
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
// The name identifies the handler for logging and debugging.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.handlers[event])
}

// call runs one handler and logs its failure. A panic counts as a failure.
func (m *Manager) call(ctx context.Context, h namedHandler, p Payload, async bool) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = h.handler(ctx, p)
	}()
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Bool("async", async).
			Msg("hook handler failed")
	}
}

// Emit dispatches an event to all registered handlers synchronously.
// Handlers are called in registration order. Errors are logged but do not
// prevent subsequent handlers from running.
func (m *Manager) Emit(ctx context.Context, p Payload) {
	for _, h := range m.snapshot(p.Event) {
		m.call(ctx, h, p, false)
	}
}

// EmitAsync dispatches an event to all registered handlers concurrently and
// returns immediately. The handlers get a context that is not cancelled when
// the caller's request ends. Use Wait to drain them on shutdown.
func (m *Manager) EmitAsync(ctx context.Context, p Payload) {
	handlers := m.snapshot(p.Event)
	if len(handlers) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		m.inflight.Add(1)
		go func() {
			defer m.inflight.Done()
			m.call(ctx, h, p, true)
		}()
	}
}

// Wait blocks until every handler started by EmitAsync has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted list of events that have at least one handler registered.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []string
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}

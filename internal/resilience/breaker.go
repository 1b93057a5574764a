// Package resilience wraps backend calls with caching, circuit breaking and
// bounded retries.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned when a call is rejected without reaching the network.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// BreakerConfig controls when a breaker trips and how long it stays open.
type BreakerConfig struct {
	// Threshold is the number of failures inside Window that opens the circuit.
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

// CircuitBreaker is a CLOSED/OPEN/HALF_OPEN state machine guarding one backend.
// Failures are counted in a sliding window. After the cooldown a single trial
// call is admitted; concurrent callers are rejected until it resolves.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string
	state     State
	failures  []time.Time
	openedAt  time.Time
	probing   bool
	cfg       BreakerConfig
	clock     Clock
	isFailure func(error) bool
	log       *logging.Logger
}

// Option customizes a CircuitBreaker.
type Option func(*CircuitBreaker)

func WithClock(c Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithFailurePredicate decides which errors count against the breaker. Errors
// that do not count are treated as a healthy response from the backend.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = fn }
}

func WithLogger(l *logging.Logger) Option {
	return func(cb *CircuitBreaker) { cb.log = l }
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, cfg BreakerConfig, opts ...Option) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	cb := &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		cfg:       cfg,
		clock:     realClock{},
		isFailure: func(err error) bool { return err != nil },
		log:       logging.New(nil, "silent"),
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.log = cb.log.Sub("breaker")

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Name returns the backend this breaker guards.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the breaker admits the call. A rejected call returns
// ErrCircuitOpen without invoking fn. If ctx is cancelled the outcome is not
// recorded.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := cb.allow()
	if err != nil {
		return err
	}

	err = fn(ctx)

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		cb.abandon(trial)
		return err
	}
	if err != nil && cb.isFailure(err) {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

// allow reports whether a call may proceed and whether it is the HALF_OPEN trial.
func (cb *CircuitBreaker) allow() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			metrics.RecordCircuitBreakerReject(cb.name)
			return false, ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
		cb.probing = true
		return true, nil
	default:
		if cb.probing {
			metrics.RecordCircuitBreakerReject(cb.name)
			return false, ErrCircuitOpen
		}
		cb.probing = true
		return true, nil
	}
}

func (cb *CircuitBreaker) abandon(trial bool) {
	if !trial {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen {
		cb.probing = false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock.Now()
	switch cb.state {
	case StateHalfOpen:
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
	case StateClosed:
		cb.failures = append(cb.pruned(now), now)
		if len(cb.failures) >= cb.cfg.Threshold {
			metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
			cb.transitionTo(StateOpen)
		}
	}
	// Late failures while OPEN come from calls admitted before the trip.
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.transitionTo(StateClosed)
	}
}

// pruned drops failures older than the window. Caller must hold lock.
func (cb *CircuitBreaker) pruned(now time.Time) []time.Time {
	cutoff := now.Add(-cb.cfg.Window)
	i := 0
	for i < len(cb.failures) && !cb.failures[i].After(cutoff) {
		i++
	}
	return cb.failures[i:]
}

// transitionTo updates state, counters and metrics. Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.probing = false

	switch next {
	case StateOpen:
		cb.openedAt = cb.clock.Now()
	case StateClosed:
		cb.failures = nil
	}

	metrics.SetCircuitBreakerState(cb.name, string(next))
	cb.log.Info().
		Str("backend", cb.name).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("circuit breaker state change")
}

// State returns the current state. An OPEN breaker whose cooldown has elapsed
// still reports OPEN until the next call moves it to HALF_OPEN.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the number of failures currently inside the window.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.pruned(cb.clock.Now()))
}

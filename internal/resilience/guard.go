package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/rewardbot/internal/cache"
	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/metrics"
)

// Guard applies cache-first lookup, circuit breaking and retry, in that
// order, around calls to one backend.
type Guard struct {
	name    string
	breaker *CircuitBreaker
	retrier *Retrier
	cache   cache.Cache
	ttl     time.Duration
	log     *logging.Logger
}

// GuardConfig wires the collaborators of a Guard. Cache may be nil to
// disable caching.
type GuardConfig struct {
	Breaker *CircuitBreaker
	Retrier *Retrier
	Cache   cache.Cache
	TTL     time.Duration
}

// NewGuard creates a guard named after its breaker.
func NewGuard(cfg GuardConfig, log *logging.Logger) *Guard {
	return &Guard{
		name:    cfg.Breaker.Name(),
		breaker: cfg.Breaker,
		retrier: cfg.Retrier,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
		log:     log.Sub("guard").Sub(cfg.Breaker.Name()),
	}
}

func (g *Guard) Name() string { return g.name }

// Breaker exposes the guard's breaker for status reporting.
func (g *Guard) Breaker() *CircuitBreaker { return g.breaker }

// Call returns the cached value for key if present, otherwise runs fn through
// the breaker and retrier and caches a successful result. An empty key skips
// the cache. fn is never invoked while the breaker rejects calls.
func Call[T any](ctx context.Context, g *Guard, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	useCache := g.cache != nil && key != ""
	if useCache {
		if v, ok := cache.GetJSON[T](ctx, g.cache, key); ok {
			return v, nil
		}
	}

	var out T
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := Retry(ctx, g.retrier, g.name, fn)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		switch {
		case errors.Is(err, ErrCircuitOpen):
			g.log.Debug().Str("key", key).Msg("call short-circuited")
		case ctx.Err() != nil:
			// Abandoned by the caller; nothing to report.
		default:
			metrics.RecordBackendCall(g.name, "error")
			g.log.Warn().Err(err).Str("key", key).Msg("backend call failed")
		}
		return zero, err
	}

	metrics.RecordBackendCall(g.name, "ok")
	if useCache {
		cache.SetJSON(ctx, g.cache, key, out, g.ttl)
	}
	return out, nil
}

package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/soyeahso/rewardbot/internal/metrics"
)

// RetryConfig bounds retries for one backend call.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Retrier retries transient failures with capped exponential backoff.
type Retrier struct {
	cfg         RetryConfig
	isTransient func(error) bool
}

// NewRetrier creates a Retrier. Errors for which isTransient returns false
// are returned after the first attempt.
func NewRetrier(cfg RetryConfig, isTransient func(error) bool) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	if isTransient == nil {
		isTransient = func(error) bool { return true }
	}
	return &Retrier{cfg: cfg, isTransient: isTransient}
}

func (r *Retrier) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return b
}

// Retry runs op until it succeeds, fails permanently, exhausts the attempt
// budget, or ctx is done.
func Retry[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && (ctx.Err() != nil || !r.isTransient(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithNotify(func(error, time.Duration) {
			metrics.RecordBackendCall(name, "retry")
		}),
	)
}

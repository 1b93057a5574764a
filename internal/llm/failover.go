package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/soyeahso/rewardbot/internal/logging"
)

// FailoverClient walks a provider chain until one produces text.
type FailoverClient struct {
	registry *Registry
	chain    []string
	log      *logging.Logger
}

// NewFailoverClient tries primary first and then each fallback in order.
// It moves on after a retryable error or an empty completion.
func NewFailoverClient(registry *Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry: registry,
		chain:    append([]string{primary}, fallbacks...),
		log:      log.Sub("llm.failover"),
	}
}

func (f *FailoverClient) Name() string { return f.chain[0] }

func (f *FailoverClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var errs []error
	for i, name := range f.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		client, err := f.registry.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		resp, err := client.Complete(ctx, req)
		switch {
		case err == nil && strings.TrimSpace(resp.Content) != "":
			if i > 0 {
				f.log.Info().Str("provider", name).Int("attempt", i+1).Msg("answered by fallback provider")
			}
			return resp, nil
		case err == nil:
			err = fmt.Errorf("%s: %w", name, ErrEmptyCompletion)
		case !isRetryable(err):
			return nil, err
		}

		f.log.Warn().Str("provider", name).Err(err).Msg("provider failed, trying next")
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all generation providers failed: %w", errors.Join(errs...))
}

// retryableCodes are provider statuses worth handing to the next provider.
var retryableCodes = map[int]bool{
	401: true, 403: true, 429: true, 500: true, 502: true, 503: true, 504: true, 529: true,
}

// isRetryable reports whether another provider might succeed where this one failed.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) && retryableCodes[provErr.Code] {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"overloaded", "rate limit", "capacity", "connection refused", "timeout"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

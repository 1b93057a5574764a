// Package backend holds typed HTTP clients for the rewards, customer and
// redemption services.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/version"
)

// DefaultTimeout bounds every backend call when the config leaves it unset.
const DefaultTimeout = 5 * time.Second

// Options configures a service client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the instrumented default. Tests use this.
	HTTPClient *http.Client
}

// httpClient is the JSON-over-HTTP core shared by the three service clients.
type httpClient struct {
	service string
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     *logging.Logger
}

func newHTTPClient(service string, opts Options, log *logging.Logger) *httpClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &httpClient{
		service: service,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		timeout: timeout,
		client:  hc,
		log:     log.Sub(service),
	}
}

// getJSON issues GET baseURL+path and decodes a JSON body into out.
func (c *httpClient) getJSON(ctx context.Context, op, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &Error{Sentinel: ErrInvalidRequest, Service: c.service, Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		// Caller abandoned the query; surface the cancellation as-is so it
		// is not mistaken for a backend failure.
		if errors.Is(err, context.Canceled) {
			return err
		}
		return wrapError(c.service, op, err, 0, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return wrapError(c.service, op, err, 0, nil)
	}

	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode != http.StatusOK {
		return wrapError(c.service, op, nil, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Sentinel:  ErrBadResponse,
			Service:   c.service,
			Operation: op,
			Status:    resp.StatusCode,
			Err:       fmt.Errorf("decode: %w", err),
		}
	}
	return nil
}

func escape(id string) string {
	return url.PathEscape(id)
}

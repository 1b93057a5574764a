package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rewardbot/internal/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

// do sends one request through h with optional header pairs.
func do(h http.Handler, method, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	do(chain(okHandler, tag("outer"), tag("inner")), http.MethodGet, "/")
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rr := do(h, http.MethodPost, "/rewards/query")
	assert.Len(t, rr.Header().Get(requestIDHeader), 36)
	assert.Equal(t, rr.Header().Get(requestIDHeader), seen)

	rr = do(h, http.MethodPost, "/rewards/query", requestIDHeader, "trace-abc")
	assert.Equal(t, "trace-abc", rr.Header().Get(requestIDHeader))
	assert.Equal(t, "trace-abc", seen)

	rr = do(h, http.MethodPost, "/rewards/query", requestIDHeader, strings.Repeat("x", 200))
	assert.Len(t, rr.Header().Get(requestIDHeader), 36, "oversized ids are replaced")
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"none configured", nil, "http://localhost:3000", ""},
		{"wildcard", []string{"*"}, "http://localhost:3000", "http://localhost:3000"},
		{"listed", []string{"https://portal.example"}, "https://portal.example", "https://portal.example"},
		{"not listed", []string{"https://portal.example"}, "https://other.example", ""},
		{"no origin header", []string{"*"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.origin != "" {
				headers = []string{"Origin", tt.origin}
			}
			rr := do(corsMiddleware(okHandler, tt.allowed), http.MethodGet, "/rewards/health", headers...)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.want != "" {
				assert.Equal(t, "Origin", rr.Header().Get("Vary"))
				assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), requestIDHeader)
			}
		})
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	rr := do(corsMiddleware(okHandler, []string{"*"}), http.MethodOptions, "/rewards/query",
		"Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, "GET, POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var captured int
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		captured = w.(*statusWriter).status
	})
	rr := do(loggingMiddleware(h, logging.New(nil, "silent")), http.MethodGet, "/rewards/health")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, captured)
}

func TestStatusWriter_Unwrap(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr, status: http.StatusOK}
	assert.Same(t, rr, sw.Unwrap())

	_, _, err := sw.Hijack()
	require.Error(t, err, "a recorder cannot be hijacked")
}

func TestWithMiddleware(t *testing.T) {
	h := withMiddleware(okHandler, logging.New(nil, "silent"), []string{"https://portal.example"})

	rr := do(h, http.MethodGet, "/rewards/health", "Origin", "https://portal.example")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	assert.Equal(t, "https://portal.example", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = do(h, http.MethodGet, "/rewards/health", "Origin", "https://other.example")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_PerClientIP(t *testing.T) {
	h := rateLimit(2, time.Minute)(okHandler)
	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/rewards/query", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
			assert.Contains(t, rr.Body.String(), `"success":false`)
		}
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, from("192.0.2.1:1234"))
	assert.Equal(t, http.StatusOK, from("192.0.2.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, from("192.0.2.1:1236"))
	assert.Equal(t, http.StatusOK, from("192.0.2.2:1234"))
}

func TestRateLimit_Disabled(t *testing.T) {
	for _, tc := range []struct {
		requests int
		window   time.Duration
	}{{0, time.Minute}, {5, 0}} {
		h := rateLimit(tc.requests, tc.window)(okHandler)
		for range 10 {
			assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/rewards/query").Code)
		}
	}
}

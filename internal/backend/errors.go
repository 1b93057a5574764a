package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks in the resilience layer.
	ErrNotFound       = errors.New("backend: resource not found")
	ErrInvalidRequest = errors.New("backend: request rejected")
	ErrUnavailable    = errors.New("backend: host unreachable or transport failure")
	ErrUpstream       = errors.New("backend: upstream error")
	ErrBadResponse    = errors.New("backend: invalid response format or malformed data")
	ErrTimeout        = errors.New("backend: request timed out")
)

// Error wraps a sentinel with the service and operation that produced it.
type Error struct {
	Sentinel  error
	Service   string
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Service, e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// IsTransient reports whether err is worth retrying: timeouts, transport
// failures and 5xx/429 responses.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrUpstream)
}

const maxErrorBody = 256

// wrapError maps a transport error or HTTP status onto a sentinel.
func wrapError(service, op string, err error, status int, body []byte) error {
	e := &Error{Service: service, Operation: op, Status: status, Err: err}
	if len(body) > 0 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		e.Body = string(body)
	}

	switch {
	case err != nil:
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			e.Sentinel = ErrTimeout
		} else {
			e.Sentinel = ErrUnavailable
		}
	case status == http.StatusNotFound:
		e.Sentinel = ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		e.Sentinel = ErrUpstream
	case status >= 400:
		e.Sentinel = ErrInvalidRequest
	default:
		e.Sentinel = ErrBadResponse
	}
	return e
}

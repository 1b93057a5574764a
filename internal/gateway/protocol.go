package gateway

import (
	"encoding/json"

	"github.com/soyeahso/rewardbot/internal/resilience"
	"github.com/soyeahso/rewardbot/internal/store"
)

// ProtocolVersion is the WebSocket protocol version spoken by this server.
const ProtocolVersion = 1

// Frame types.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Server-sent events.
const (
	EventHello    = "hello"
	EventShutdown = "shutdown"
)

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocol       = "protocol_error"
	CodeMethodNotFound = "method_not_found"
	CodeInvalidParams  = "invalid_params"
	CodeInvalidRequest = "invalid_request"
	CodeUnavailable    = "unavailable"
	CodeHistory        = "history_error"
)

// Frame is the envelope of every socket message. Requests carry ID, Method
// and Params; responses carry ID, OK and either Payload or Error; events
// carry Event, Seq and Payload.
type Frame struct {
	Type string `json:"type"`

	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`

	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
}

// ErrorShape is the error body of a failed response.
type ErrorShape struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// Hello is sent once when a socket connects.
type Hello struct {
	Protocol       int      `json:"protocol"`
	Version        string   `json:"version"`
	Commit         string   `json:"commit,omitempty"`
	ConnID         string   `json:"connId"`
	Methods        []string `json:"methods"`
	Events         []string `json:"events"`
	MaxPayload     int      `json:"maxPayload"`
	PingIntervalMs int64    `json:"pingIntervalMs"`
}

// HistoryParams are the params of "rewards.history". An empty SessionID
// means the session the socket last used.
type HistoryParams struct {
	SessionID string `json:"sessionId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// HistoryPayload answers "rewards.history".
type HistoryPayload struct {
	SessionID string        `json:"sessionId"`
	Entries   []store.Entry `json:"entries"`
}

// BreakersPayload answers "breakers.status".
type BreakersPayload struct {
	Breakers []resilience.BreakerStatus `json:"breakers"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeResponse, ID: id, OK: boolPtr(true), Payload: raw}, nil
}

// NewErrorResponse creates a failed response frame.
func NewErrorResponse(id string, shape ErrorShape) Frame {
	return Frame{Type: FrameTypeResponse, ID: id, OK: boolPtr(false), Error: &shape}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: FrameTypeEvent, Event: event, Seq: seq, Payload: raw}, nil
}

func boolPtr(b bool) *bool { return &b }

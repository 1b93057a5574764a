package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rewardbot/internal/config"
	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/hooks"
	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/resilience"
	"github.com/soyeahso/rewardbot/internal/store"
)

type stubAnswerer struct {
	mu      sync.Mutex
	queries []domain.Query
	answer  func(q domain.Query) domain.Answer
}

func (s *stubAnswerer) Handle(_ context.Context, q domain.Query) domain.Answer {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.answer != nil {
		return s.answer(q)
	}
	return domain.Answer{Response: "You currently have 5,000 reward points available.", SessionID: "sess-1", Success: true, ElapsedMs: 3}
}

func (s *stubAnswerer) last() domain.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

type stubHistory struct {
	entries []store.Entry
	err     error
}

func (h *stubHistory) History(_ context.Context, sessionID string, limit int) ([]store.Entry, error) {
	if h.err != nil {
		return nil, h.err
	}
	var out []store.Entry
	for _, e := range h.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type stubBreakers struct{}

func (stubBreakers) Snapshot() []resilience.BreakerStatus {
	return []resilience.BreakerStatus{{Name: "rewards", State: resilience.StateClosed}}
}

func testServer(t *testing.T, a *stubAnswerer, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults().Server
	opts = append([]ServerOption{WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "# metrics\n")
	}))}, opts...)

	srv := New(cfg, a, logging.New(nil, "silent"), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postQuery(t *testing.T, ts *httptest.Server, body string) (*http.Response, queryResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/rewards/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out queryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

// --- HTTP ---

func TestQueryEndpoint_Success(t *testing.T) {
	a := &stubAnswerer{}
	_, ts := testServer(t, a)

	resp, out := postQuery(t, ts, `{"query":"How many points do I have?","customerId":"CUST001","userType":"agent"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.True(t, out.Success)
	assert.Contains(t, out.Response, "5,000")
	assert.Equal(t, "sess-1", out.SessionID)

	q := a.last()
	assert.Equal(t, "CUST001", q.CustomerID)
	assert.Equal(t, domain.ActorAgent, q.Actor)
}

func TestQueryEndpoint_DefaultsActor(t *testing.T) {
	a := &stubAnswerer{}
	_, ts := testServer(t, a)

	resp, _ := postQuery(t, ts, `{"query":"balance","customerId":"C1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.ActorCustomer, a.last().Actor)
}

func TestQueryEndpoint_ValidationFailure(t *testing.T) {
	a := &stubAnswerer{}
	_, ts := testServer(t, a)

	resp, out := postQuery(t, ts, `{"query":"   ","customerId":"","sessionId":"keep-me"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Equal(t, "keep-me", out.SessionID)
	assert.Equal(t, "Invalid request: {customerId=Customer ID is required, query=Query cannot be empty}", out.ErrorMessage)
	assert.Equal(t, "Query cannot be empty", out.Errors["query"])
	assert.Empty(t, a.queries)
}

func TestQueryEndpoint_TooLong(t *testing.T) {
	a := &stubAnswerer{}
	_, ts := testServer(t, a)

	body, err := json.Marshal(queryRequest{Query: strings.Repeat("a", domain.MaxQueryLength+1), CustomerID: "C1"})
	require.NoError(t, err)
	resp, out := postQuery(t, ts, string(body))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out.Errors["query"], "500")
}

func TestQueryEndpoint_UnknownUserType(t *testing.T) {
	a := &stubAnswerer{}
	_, ts := testServer(t, a)

	resp, out := postQuery(t, ts, `{"query":"balance","customerId":"C1","userType":"robot"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out.Errors, "userType")
}

func TestQueryEndpoint_MalformedJSON(t *testing.T) {
	a := &stubAnswerer{}
	_, ts := testServer(t, a)

	resp, out := postQuery(t, ts, `{"query":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)
	assert.True(t, strings.HasPrefix(out.ErrorMessage, "Invalid request: "))
}

func TestQueryEndpoint_PipelineFailure(t *testing.T) {
	a := &stubAnswerer{answer: func(q domain.Query) domain.Answer {
		return domain.Answer{Response: domain.GenericErrorMessage, SessionID: "s", Success: false, ErrorMessage: "internal error"}
	}}
	_, ts := testServer(t, a)

	resp, out := postQuery(t, ts, `{"query":"balance","customerId":"C1"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Equal(t, domain.GenericErrorMessage, out.Response)
}

func TestQueryEndpoint_MethodNotAllowed(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})

	resp, err := http.Get(ts.URL + "/rewards/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRewardsHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})

	resp, err := http.Get(ts.URL + "/rewards/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Reward Query Bot is running!", string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	// Public endpoint only returns status
	assert.Empty(t, health.Version)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "# metrics")
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	h := &stubHistory{entries: []store.Entry{
		{ID: "1", SessionID: "s1", Query: "first"},
		{ID: "2", SessionID: "s1", Query: "second"},
		{ID: "3", SessionID: "s2", Query: "other"},
	}}
	_, ts := testServer(t, &stubAnswerer{}, WithHistory(h))

	resp, err := http.Get(ts.URL + "/rewards/sessions/s1/history?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		SessionID string        `json:"sessionId"`
		Entries   []store.Entry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "s1", out.SessionID)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "second", out.Entries[0].Query)
}

func TestHistoryEndpoint_Errors(t *testing.T) {
	_, disabled := testServer(t, &stubAnswerer{})
	resp, err := http.Get(disabled.URL + "/rewards/sessions/s1/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, ts := testServer(t, &stubAnswerer{}, WithHistory(&stubHistory{err: errors.New("db locked")}))
	resp, err = http.Get(ts.URL + "/rewards/sessions/s1/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/rewards/sessions/s1/history?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitOnQueryEndpoint(t *testing.T) {
	a := &stubAnswerer{}
	cfg := config.Defaults().Server
	cfg.RateLimit = config.RateLimitConfig{Requests: 1, Window: time.Minute}
	srv := New(cfg, a, logging.New(nil, "silent"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := postQuery(t, ts, `{"query":"balance","customerId":"C1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postQuery(t, ts, `{"query":"balance","customerId":"C1"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Health is never limited.
	hr, err := http.Get(ts.URL + "/rewards/health")
	require.NoError(t, err)
	hr.Body.Close()
	assert.Equal(t, http.StatusOK, hr.StatusCode)
}

// --- WebSocket ---

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, FrameTypeEvent, hello.Type)
	require.Equal(t, EventHello, hello.Event)
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, FrameTypeResponse, resp.Type)
	require.Equal(t, id, resp.ID)
	return resp
}

func TestWebSocket_HelloAdvertisesMethods(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))

	var hello Hello
	require.NoError(t, json.Unmarshal(frame.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.ConnID)
	assert.Equal(t, int64(1), frame.Seq)
	assert.Equal(t, pingInterval.Milliseconds(), hello.PingIntervalMs)
	assert.Equal(t, []string{"breakers.status", "health", "rewards.history", "rewards.query"}, hello.Methods)
}

func TestWebSocket_Query(t *testing.T) {
	a := &stubAnswerer{}
	_, ts := testServer(t, a)
	conn := dialWS(t, ts)

	resp := roundTrip(t, conn, "q1", "rewards.query", map[string]string{"query": "points?", "customerId": "C1"})
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var answer domain.Answer
	require.NoError(t, json.Unmarshal(resp.Payload, &answer))
	assert.True(t, answer.Success)
	assert.Contains(t, answer.Response, "5,000")
	assert.Equal(t, "C1", a.last().CustomerID)
}

func TestWebSocket_QueryContinuesSocketSession(t *testing.T) {
	a := &stubAnswerer{}
	h := &stubHistory{entries: []store.Entry{{ID: "1", SessionID: "sess-1", Query: "points?"}}}
	_, ts := testServer(t, a, WithHistory(h))
	conn := dialWS(t, ts)

	roundTrip(t, conn, "q1", "rewards.query", map[string]string{"query": "points?", "customerId": "C1"})
	assert.Empty(t, a.last().SessionID)

	roundTrip(t, conn, "q2", "rewards.query", map[string]string{"query": "and cashback?", "customerId": "C1"})
	assert.Equal(t, "sess-1", a.last().SessionID)

	// an explicit session wins
	roundTrip(t, conn, "q3", "rewards.query", map[string]string{"query": "x", "customerId": "C1", "sessionId": "other"})
	assert.Equal(t, "other", a.last().SessionID)

	// history without a sessionId reads the socket's session
	resp := roundTrip(t, conn, "h1", "rewards.history", HistoryParams{})
	require.True(t, *resp.OK)
	var hp HistoryPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &hp))
	assert.Equal(t, "sess-1", hp.SessionID)
	assert.Len(t, hp.Entries, 1)
}

func TestWebSocket_QueryValidation(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})
	conn := dialWS(t, ts)

	resp := roundTrip(t, conn, "q2", "rewards.query", map[string]string{"query": ""})
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Invalid request: ")
}

func TestWebSocket_UnknownMethod(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})
	conn := dialWS(t, ts)

	resp := roundTrip(t, conn, "x", "chat.send", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestWebSocket_MalformedFrameKeepsConnection(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var errFrame Frame
	require.NoError(t, conn.ReadJSON(&errFrame))
	require.NotNil(t, errFrame.Error)
	assert.Equal(t, CodeProtocol, errFrame.Error.Code)

	resp := roundTrip(t, conn, "h", "health", nil)
	assert.True(t, *resp.OK)
}

func TestWebSocket_HealthHistoryBreakers(t *testing.T) {
	h := &stubHistory{entries: []store.Entry{{ID: "1", SessionID: "s1", Query: "q"}}}
	srv, ts := testServer(t, &stubAnswerer{}, WithHistory(h), WithBreakers(stubBreakers{}))
	conn := dialWS(t, ts)

	resp := roundTrip(t, conn, "1", "health", nil)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
	assert.Equal(t, 1, srv.clients.Count())

	resp = roundTrip(t, conn, "2", "rewards.history", HistoryParams{SessionID: "s1"})
	assert.True(t, *resp.OK)
	assert.Contains(t, string(resp.Payload), `"query":"q"`)

	resp = roundTrip(t, conn, "3", "rewards.history", HistoryParams{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = roundTrip(t, conn, "4", "breakers.status", nil)
	var bp BreakersPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &bp))
	require.Len(t, bp.Breakers, 1)
	assert.Equal(t, "rewards", bp.Breakers[0].Name)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	_, ts := testServer(t, &stubAnswerer{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// --- Lifecycle ---

func TestServe_EmitsLifecycleHooks(t *testing.T) {
	log := logging.New(nil, "silent")
	hm := hooks.NewManager(log)

	var mu sync.Mutex
	var events []string
	record := func(_ context.Context, p hooks.Payload) error {
		mu.Lock()
		events = append(events, p.Event)
		mu.Unlock()
		return nil
	}
	hm.On(hooks.EventServerStart, "test", record)
	hm.On(hooks.EventServerStop, "test", record)

	srv := New(config.Defaults().Server, &stubAnswerer{}, log, WithHooks(hm))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/rewards/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Greater(t, srv.Uptime(), time.Duration(0))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{hooks.EventServerStart, hooks.EventServerStop}, events)
}

func TestServe_ShutdownNotifiesSockets(t *testing.T) {
	srv := New(config.Defaults().Server, &stubAnswerer{}, testLog())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))
	require.Eventually(t, func() bool { return srv.clients.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	var bye Frame
	require.NoError(t, conn.ReadJSON(&bye))
	assert.Equal(t, EventShutdown, bye.Event)
	assert.Equal(t, int64(2), bye.Seq)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

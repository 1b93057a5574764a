// Package gateway exposes the query pipeline over HTTP and WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/rewardbot/internal/config"
	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/hooks"
	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/metrics"
	"github.com/soyeahso/rewardbot/internal/resilience"
	"github.com/soyeahso/rewardbot/internal/store"
	"github.com/soyeahso/rewardbot/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const maxFrameBytes = 64 * 1024

// Answerer turns a validated query into an answer.
type Answerer interface {
	Handle(ctx context.Context, q domain.Query) domain.Answer
}

// HistoryReader lists a session's logged answers.
type HistoryReader interface {
	History(ctx context.Context, sessionID string, limit int) ([]store.Entry, error)
}

// BreakerReporter reports circuit breaker state.
type BreakerReporter interface {
	Snapshot() []resilience.BreakerStatus
}

// Server is the rewardbot HTTP + WebSocket server.
type Server struct {
	cfg       config.ServerConfig
	log       *logging.Logger
	answerer  Answerer
	clients   *ClientRegistry
	handlers  map[string]RequestHandler
	version   string
	pingEvery time.Duration

	// Optional collaborators (nil when not configured)
	history  HistoryReader
	breakers BreakerReporter
	hooks    *hooks.Manager

	metricsHandler http.Handler

	mu         sync.Mutex
	addr       string
	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithHistory enables the history endpoints.
func WithHistory(h HistoryReader) ServerOption {
	return func(s *Server) {
		s.history = h
	}
}

// WithBreakers exposes breaker state through the "breakers.status" method.
func WithBreakers(b BreakerReporter) ServerOption {
	return func(s *Server) {
		s.breakers = b
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithMetricsHandler replaces the default Prometheus handler on /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// New creates a new server that answers queries through a.
func New(cfg config.ServerConfig, a Answerer, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:            cfg,
		log:            log.Sub("gateway"),
		answerer:       a,
		clients:        NewClientRegistry(log.Sub("clients")),
		handlers:       make(map[string]RequestHandler),
		version:        version.Version,
		pingEvery:      pingInterval,
		metricsHandler: metrics.Handler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// If no origins are configured, only same-origin (no Origin header) or non-browser
// clients are allowed. If origins are configured, the Origin must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the sorted list of registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Handler returns the full HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on an existing listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Int("methods", len(s.handlers)).
		Msg("server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.Payload{
			Event: hooks.EventServerStart,
			Data:  map[string]any{"addr": ln.Addr().String()},
		})
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		s.log.Info().Msg("shutting down server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.Payload{Event: hooks.EventServerStop})
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.Shutdown("server shutting down")
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Uptime reports how long the server has been serving.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	// drop the HTTP server's deadlines; sockets are long-lived
	conn.NetConn().SetDeadline(time.Time{})

	client := NewClient(conn, r.RemoteAddr, s.log.Sub("ws"))

	hello := Hello{
		Protocol:       ProtocolVersion,
		Version:        s.version,
		Commit:         version.Commit,
		ConnID:         client.ConnID,
		Methods:        s.Methods(),
		Events:         []string{EventHello, EventShutdown},
		MaxPayload:     maxFrameBytes,
		PingIntervalMs: s.pingEvery.Milliseconds(),
	}
	if err := client.SendEvent(EventHello, hello); err != nil {
		s.log.Warn().Err(err).Msg("sending hello failed")
		client.Close(websocket.CloseInternalServerErr, "")
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client)
		client.Close(websocket.CloseNormalClosure, "")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go client.keepAlive(ctx, s.pingEvery)

	s.readLoop(ctx, client)
}

// readLoop processes incoming frames until the peer goes away.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if isDecodeError(err) {
				client.RespondError("", ErrorShape{Code: CodeProtocol, Message: "malformed frame"})
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(ctx, client, frame)
	}
}

// dispatch routes a request frame to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	handler(&RequestContext{
		Ctx:    ctx,
		Client: client,
		Frame:  frame,
		Server: s,
	})
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

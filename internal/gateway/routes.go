package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/rewardbot/internal/resilience"
	"github.com/soyeahso/rewardbot/internal/store"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	limit := rateLimit(s.cfg.RateLimit.Requests, s.cfg.RateLimit.Window)

	mux.Handle("POST /rewards/query", limit(http.HandlerFunc(s.handleQuery)))
	mux.HandleFunc("GET /rewards/health", s.handleRewardsHealth)
	mux.HandleFunc("GET /rewards/sessions/{sessionID}/history", s.handleHistory)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metricsHandler)
	mux.Handle("GET /ws", limit(http.HandlerFunc(s.handleWebSocket)))

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all WebSocket method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("rewards.query", s.rpcQuery)
	s.Handle("rewards.history", s.rpcHistory)
	s.Handle("breakers.status", s.rpcBreakers)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		UptimeMs: s.Uptime().Milliseconds(),
	})
}

// rpcQuery answers a query frame. The payload is the same envelope the HTTP
// endpoint returns; only a rejected request produces an error frame.
func (s *Server) rpcQuery(rc *RequestContext) {
	var req queryRequest
	if err := rc.Params(&req); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = rc.Client.Session()
	}

	q, verr := req.toQuery()
	if verr != nil {
		rc.RespondErrorShape(ErrorShape{
			Code:    CodeInvalidRequest,
			Message: invalidRequestMessage(verr.Fields),
			Details: verr.Fields,
		})
		return
	}

	ans := s.answerer.Handle(rc.Ctx, q)
	rc.Client.remember(ans.SessionID)
	rc.Respond(ans)
}

func (s *Server) rpcHistory(rc *RequestContext) {
	if s.history == nil {
		rc.RespondError(CodeUnavailable, "history is disabled")
		return
	}

	var p HistoryParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.SessionID == "" {
		p.SessionID = rc.Client.Session()
	}
	if p.SessionID == "" {
		rc.RespondError(CodeInvalidParams, "sessionId is required")
		return
	}

	entries, err := s.history.History(rc.Ctx, p.SessionID, p.Limit)
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", p.SessionID).Msg("history lookup failed")
		rc.RespondErrorShape(ErrorShape{
			Code:         CodeHistory,
			Message:      "history unavailable",
			RetryAfterMs: time.Second.Milliseconds(),
		})
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	rc.Respond(HistoryPayload{SessionID: p.SessionID, Entries: entries})
}

func (s *Server) rpcBreakers(rc *RequestContext) {
	out := BreakersPayload{Breakers: []resilience.BreakerStatus{}}
	if s.breakers != nil {
		out.Breakers = s.breakers.Snapshot()
	}
	rc.Respond(out)
}

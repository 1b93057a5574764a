package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/store"
)

// LivenessMessage is the body of GET /rewards/health.
const LivenessMessage = "Reward Query Bot is running!"

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the RPC handler populates all fields.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Clients  int    `json:"clients,omitempty"`
	UptimeMs int64  `json:"uptimeMs,omitempty"`
}

// queryRequest is the inbound JSON body of a query.
type queryRequest struct {
	Query      string `json:"query"`
	CustomerID string `json:"customerId"`
	SessionID  string `json:"sessionId,omitempty"`
	UserType   string `json:"userType,omitempty"`
}

// queryResponse is the answer envelope plus the field errors of a rejected request.
type queryResponse struct {
	domain.Answer
	Errors map[string]string `json:"errors,omitempty"`
}

// toQuery normalizes and validates an inbound request.
func (r queryRequest) toQuery() (domain.Query, *domain.ValidationError) {
	q := domain.Query{
		Text:       r.Query,
		CustomerID: strings.TrimSpace(r.CustomerID),
		SessionID:  r.SessionID,
	}
	actor, err := domain.ParseActorType(r.UserType)
	if err != nil {
		actor = domain.ActorType(strings.ToUpper(strings.TrimSpace(r.UserType)))
	}
	q.Actor = actor

	if err := q.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return q, verr
		}
		return q, &domain.ValidationError{Fields: map[string]string{"request": err.Error()}}
	}
	return q, nil
}

// invalidRequestMessage renders field errors as "Invalid request: {field=message, ...}".
func invalidRequestMessage(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return "Invalid request: {" + strings.Join(parts, ", ") + "}"
}

// handleQuery answers POST /rewards/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	body := http.MaxBytesReader(w, r.Body, maxFrameBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		fields := map[string]string{"body": "malformed JSON body"}
		writeJSON(w, http.StatusBadRequest, queryResponse{
			Answer: domain.Answer{Success: false, ErrorMessage: invalidRequestMessage(fields)},
			Errors: fields,
		})
		return
	}

	q, verr := req.toQuery()
	if verr != nil {
		s.log.Warn().Str("errors", invalidRequestMessage(verr.Fields)).Msg("rejected query")
		writeJSON(w, http.StatusBadRequest, queryResponse{
			Answer: domain.Answer{
				SessionID:    q.SessionID,
				Success:      false,
				ErrorMessage: invalidRequestMessage(verr.Fields),
			},
			Errors: verr.Fields,
		})
		return
	}

	answer := s.answerer.Handle(r.Context(), q)
	status := http.StatusOK
	if !answer.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, queryResponse{Answer: answer})
}

// handleRewardsHealth is the static liveness string of the query service.
func (s *Server) handleRewardsHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(LivenessMessage))
}

// handleHealth returns the server health status. Only status is exposed
// publicly; detailed info is available via the RPC health method.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleHistory lists a session's answers, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := s.history.History(r.Context(), r.PathValue("sessionID"), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("reading history failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryPayload{SessionID: r.PathValue("sessionID"), Entries: entries})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.RespondErrorShape(ErrorShape{Code: code, Message: message})
}

// RespondErrorShape sends a fully populated error response.
func (rc *RequestContext) RespondErrorShape(shape ErrorShape) {
	if err := rc.Client.RespondError(rc.Frame.ID, shape); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error")
	}
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

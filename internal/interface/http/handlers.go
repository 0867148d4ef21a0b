// Package http implements the REST API of Lexio Insight Hub.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/application/command"
	"github.com/lexio-app/lexio-insight-hub/internal/application/query"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// maxBodyBytes bounds request bodies; a full client-side batch flush
// stays well under this.
const maxBodyBytes = 1 << 20 // 1 MB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Lexio Insight Hub API",
		"version":     "v1",
		"description": "Learning analytics and progression engine for the Lexio mobile app",
		"endpoints": map[string]string{
			"health":     "/health",
			"events":     "/api/v1/events",
			"attempts":   "/api/v1/attempts",
			"funnel":     "/api/v1/funnel",
			"engagement": "/api/v1/engagement",
			"user_stats": "/api/v1/users/{id}/stats",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// INGESTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// recordEventRequest is the wire shape of one submitted behavioral event.
type recordEventRequest struct {
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
}

func (req recordEventRequest) toCommand(correlationID string) command.RecordEventCommand {
	cmd := command.RecordEventCommand{
		UserID:        req.UserID,
		Type:          req.Type,
		Payload:       req.Payload,
		CorrelationID: correlationID,
	}
	if req.Timestamp != nil {
		cmd.Timestamp = *req.Timestamp
	}
	return cmd
}

// handleRecordEvent handles POST /api/v1/events
func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordEventHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Event handler not configured")
		return
	}

	var req recordEventRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordEventHandler.Handle(r.Context(), req.toCommand(getRequestID(r.Context())))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// batchRequest is the wire shape of a client's buffered flush.
type batchRequest struct {
	Events []recordEventRequest `json:"events"`
}

// batchItemError reports one rejected event by its submission index.
type batchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// batchResponse is the per-batch outcome summary.
type batchResponse struct {
	Total    int              `json:"total"`
	Appended int              `json:"appended"`
	Dropped  int              `json:"dropped"`
	Failed   int              `json:"failed"`
	EventIDs []string         `json:"event_ids"`
	Errors   []batchItemError `json:"errors,omitempty"`
}

// handleRecordBatchEvents handles POST /api/v1/events/batch
func (s *Server) handleRecordBatchEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordBatchEventsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Batch handler not configured")
		return
	}

	var req batchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	correlationID := getRequestID(r.Context())
	cmd := command.RecordBatchEventsCommand{CorrelationID: correlationID}
	for _, e := range req.Events {
		cmd.Events = append(cmd.Events, e.toCommand(correlationID))
	}

	result, err := s.deps.RecordBatchEventsHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := batchResponse{
		Total:    result.Total,
		Appended: result.Appended,
		Dropped:  result.Dropped,
		Failed:   result.Failed,
		EventIDs: result.EventIDs,
	}
	for idx, itemErr := range result.Errors {
		resp.Errors = append(resp.Errors, batchItemError{Index: idx, Error: itemErr.Error()})
	}

	// A batch with individual rejections still succeeds as a request; the
	// per-item outcomes are in the body.
	status := http.StatusCreated
	if result.Appended == 0 && result.Total > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// recordAttemptRequest is the wire shape of one answer submission.
type recordAttemptRequest struct {
	UserID      string `json:"user_id"`
	UnitGroupID string `json:"unit_group_id"`
	ItemID      string `json:"item_id"`
	Correct     bool   `json:"correct"`
}

// handleRecordAttempt handles POST /api/v1/attempts
func (s *Server) handleRecordAttempt(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordAttemptHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Attempt handler not configured")
		return
	}

	var req recordAttemptRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordAttemptHandler.Handle(r.Context(), command.RecordAttemptCommand{
		UserID:        req.UserID,
		UnitGroupID:   req.UnitGroupID,
		ItemID:        req.ItemID,
		Correct:       req.Correct,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetFunnel handles GET /api/v1/funnel - the default activation
// funnel over a window given as from/to query parameters.
func (s *Server) handleGetFunnel(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetFunnelHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Funnel handler not configured")
		return
	}

	q := query.GetFunnelQuery{
		SkipCache: getQueryParamBool(r, "skip_cache"),
	}
	var ok bool
	if q.From, q.To, ok = s.parseWindow(w, r); !ok {
		return
	}

	result, err := s.deps.GetFunnelHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// computeFunnelRequest declares an ad-hoc funnel.
type computeFunnelRequest struct {
	Steps []string   `json:"steps"`
	From  *time.Time `json:"from,omitempty"`
	To    *time.Time `json:"to,omitempty"`
}

// handleComputeFunnel handles POST /api/v1/funnel - a funnel over
// caller-declared steps.
func (s *Server) handleComputeFunnel(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetFunnelHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Funnel handler not configured")
		return
	}

	var req computeFunnelRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	q := query.GetFunnelQuery{Steps: req.Steps}
	if req.From != nil {
		q.From = *req.From
	}
	if req.To != nil {
		q.To = *req.To
	}

	result, err := s.deps.GetFunnelHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetEngagement handles GET /api/v1/engagement
func (s *Server) handleGetEngagement(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetEngagementHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Engagement handler not configured")
		return
	}

	q := query.GetEngagementQuery{
		SkipCache: getQueryParamBool(r, "skip_cache"),
	}
	var ok bool
	if q.From, q.To, ok = s.parseWindow(w, r); !ok {
		return
	}

	result, err := s.deps.GetEngagementHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetUserStats handles GET /api/v1/users/{id}/stats
func (s *Server) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "User stats handler not configured")
		return
	}

	q := query.GetUserStatsQuery{
		UserID:    r.PathValue("id"),
		SkipCache: getQueryParamBool(r, "skip_cache"),
	}
	var ok bool
	if q.From, q.To, ok = s.parseWindow(w, r); !ok {
		return
	}

	result, err := s.deps.GetUserStatsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body into dest, writing the error
// response itself on failure. Returns false when the caller should stop.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return false
	}
	return true
}

// parseWindow reads the optional from/to query parameters (RFC 3339).
// Both absent is fine; handlers apply their default window.
func (s *Server) parseWindow(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_window", "'from' must be an RFC 3339 timestamp")
			return from, to, false
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_window", "'to' must be an RFC 3339 timestamp")
			return from, to, false
		}
	}
	return from, to, true
}

// writeDomainError maps a domain error to the HTTP status and error code
// the mobile client switches on.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsPersistence(err), shared.IsExternalService(err):
		s.logger.Error("request failed on a backing service",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "A backing service is unavailable")
	default:
		s.logger.Error("unhandled request error",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

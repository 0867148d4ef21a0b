package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/application/command"
	"github.com/lexio-app/lexio-insight-hub/internal/application/query"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeEventRepo struct {
	appended    []*event.Event
	unknownUser string
}

func (r *fakeEventRepo) Append(ctx context.Context, e *event.Event) (shared.EventID, error) {
	if r.unknownUser != "" && e.UserID.String() == r.unknownUser {
		return "", shared.ErrEventUserUnknown
	}
	r.appended = append(r.appended, e)
	return shared.EventID("01JE6W4NXB8K2M3P5Q7R9S0T1V"), nil
}

func (r *fakeEventRepo) Query(ctx context.Context, f event.Filter) ([]*event.Event, error) {
	return nil, nil
}

func (r *fakeEventRepo) CountInWindow(ctx context.Context, w shared.TimeRange) (int, error) {
	return 0, nil
}

type fakeUserDirectory struct {
	exists bool
}

func (d *fakeUserDirectory) Exists(ctx context.Context, userID shared.UserID) (bool, error) {
	return d.exists, nil
}

func (d *fakeUserDirectory) CountCreatedWithin(ctx context.Context, from, to time.Time) (int, error) {
	return 0, nil
}

type fakeProgressRepo struct{}

func (r *fakeProgressRepo) Upsert(ctx context.Context, key progress.Key, d progress.Delta) (*progress.Record, error) {
	return nil, shared.ErrProgressNotFound
}

func (r *fakeProgressRepo) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	return nil, shared.ErrProgressNotFound
}

func (r *fakeProgressRepo) ListByGroup(ctx context.Context, userID shared.UserID, groupID progress.UnitGroupID) ([]*progress.Record, error) {
	return nil, nil
}

func (r *fakeProgressRepo) ListByUser(ctx context.Context, userID shared.UserID) ([]*progress.Record, error) {
	return nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestServer(deps Dependencies) *Server {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0 // no throttling in tests
	return NewServer(cfg, deps)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthEndpoint_Default(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec := doRequest(s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestRootEndpoint_ListsAPI(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec := doRequest(s, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lexio Insight Hub API")
	assert.Contains(t, rec.Body.String(), "/api/v1/events")
}

func TestRecordEvent_NotConfigured(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec := doRequest(s, http.MethodPost, "/api/v1/events", `{"user_id":"u1","type":"session_start"}`)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_implemented", resp.Error.Code)
}

func TestRecordEvent_Accepted(t *testing.T) {
	repo := &fakeEventRepo{}
	s := newTestServer(Dependencies{
		RecordEventHandler: command.NewRecordEventHandler(repo, nil, nil),
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/events",
		`{"user_id":"u1","type":"session_start","payload":{"locale":"en"}}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	require.Len(t, repo.appended, 1)
	assert.Equal(t, event.TypeSessionStart, repo.appended[0].Type)
}

func TestRecordEvent_InvalidJSON(t *testing.T) {
	s := newTestServer(Dependencies{
		RecordEventHandler: command.NewRecordEventHandler(&fakeEventRepo{}, nil, nil),
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/events", `{"user_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_json", resp.Error.Code)
}

func TestRecordEvent_ValidationError(t *testing.T) {
	s := newTestServer(Dependencies{
		RecordEventHandler: command.NewRecordEventHandler(&fakeEventRepo{}, nil, nil),
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/events", `{"type":"session_start"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_failed", resp.Error.Code)
}

func TestRecordBatchEvents_MixedOutcomes(t *testing.T) {
	repo := &fakeEventRepo{unknownUser: "ghost"}
	s := newTestServer(Dependencies{
		RecordBatchEventsHandler: command.NewRecordBatchEventsHandler(repo, nil, nil),
	})

	body := `{"events":[
		{"user_id":"u1","type":"session_start"},
		{"user_id":"ghost","type":"session_start"}
	]}`
	rec := doRequest(s, http.MethodPost, "/api/v1/events/batch", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.appended, 1)
	assert.Contains(t, rec.Body.String(), `"total":2`)
	assert.Contains(t, rec.Body.String(), `"appended":1`)
	assert.Contains(t, rec.Body.String(), `"dropped":1`)
}

func TestRecordBatchEvents_RejectsMalformedBatch(t *testing.T) {
	repo := &fakeEventRepo{}
	s := newTestServer(Dependencies{
		RecordBatchEventsHandler: command.NewRecordBatchEventsHandler(repo, nil, nil),
	})

	body := `{"events":[
		{"user_id":"u1","type":"session_start"},
		{"user_id":"","type":"session_start"}
	]}`
	rec := doRequest(s, http.MethodPost, "/api/v1/events/batch", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.appended)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_failed", resp.Error.Code)
}

func TestGetFunnel_InvalidWindowParam(t *testing.T) {
	s := newTestServer(Dependencies{
		GetFunnelHandler: query.NewGetFunnelHandler(&fakeEventRepo{}, nil, nil),
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/funnel?from=yesterday", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_window", resp.Error.Code)
}

func TestGetFunnel_DefaultWindow(t *testing.T) {
	s := newTestServer(Dependencies{
		GetFunnelHandler: query.NewGetFunnelHandler(&fakeEventRepo{}, nil, nil),
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/funnel", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestComputeFunnel_CustomSteps(t *testing.T) {
	s := newTestServer(Dependencies{
		GetFunnelHandler: query.NewGetFunnelHandler(&fakeEventRepo{}, nil, nil),
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/funnel",
		`{"steps":["session_start","magic_moment_complete"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUserStats_UnknownUser(t *testing.T) {
	s := newTestServer(Dependencies{
		GetUserStatsHandler: query.NewGetUserStatsHandler(
			&fakeEventRepo{}, &fakeProgressRepo{}, &fakeUserDirectory{exists: false}, nil, nil),
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/users/ghost/stats", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec := doRequest(s, http.MethodGet, "/health", "")

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

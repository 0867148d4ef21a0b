package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth_ValidHeaderKey(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", []string{"secret"})
	h := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_BearerFallback(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", []string{"secret"})
	h := auth.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_Rejections(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", []string{"secret"})
	h := auth.Middleware(okHandler())

	// Missing key
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_api_key")

	// Wrong key
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_api_key")
}

func TestAPIKeyAuth_KeyRotation(t *testing.T) {
	auth := NewAPIKeyAuth("X-API-Key", []string{"old"})

	auth.AddKey("new")
	auth.RemoveKey("old")

	assert.True(t, auth.IsValid("new"))
	assert.False(t, auth.IsValid("old"))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	h := SecurityHeadersMiddleware(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRequestSizeLimitMiddleware_RejectsOversized(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too long"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChain_OrderIsOuterToInner(t *testing.T) {
	var order []string
	tag := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainHandler(okHandler(), tag("outer"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestCompositeHealthChecker_AllPassing(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", func(ctx context.Context) error { return nil })
	c.AddCheck("cache", func(ctx context.Context) error { return nil })

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	require.Len(t, status.Checks, 2)
	assert.True(t, status.Checks["database"].Healthy)
}

func TestCompositeHealthChecker_FailurePropagates(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", func(ctx context.Context) error { return nil })
	c.AddCheck("cache", func(ctx context.Context) error { return errors.New("connection refused") })

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Contains(t, status.Message, "cache")
	assert.Equal(t, "connection refused", status.Checks["cache"].Message)
}

func TestCompositeHealthChecker_NoChecksIsHealthy(t *testing.T) {
	c := NewCompositeHealthChecker("test")

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}

func TestNoopHealthChecker(t *testing.T) {
	n := NewNoopHealthChecker()

	status := n.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
}

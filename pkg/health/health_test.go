package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func serveReadiness(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", down)

	rec := httptest.NewRecorder()
	h.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *Handler)
		code   int
		status Status
	}{
		{"no checkers", func(h *Handler) {}, http.StatusOK, StatusUp},
		{"all up", func(h *Handler) {
			h.Register("postgres", up)
			h.RegisterOptional("redis", up)
		}, http.StatusOK, StatusUp},
		{"critical down", func(h *Handler) {
			h.Register("postgres", down)
			h.RegisterOptional("redis", up)
		}, http.StatusServiceUnavailable, StatusDown},
		{"optional down", func(h *Handler) {
			h.Register("postgres", up)
			h.RegisterOptional("kafka", down)
		}, http.StatusOK, StatusDegraded},
		{"both down", func(h *Handler) {
			h.Register("postgres", down)
			h.RegisterOptional("kafka", down)
		}, http.StatusServiceUnavailable, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			tt.setup(h)

			code, resp := serveReadiness(t, h)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
		})
	}
}

func TestReadinessHandler_ReportsErrors(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", down)
	h.Register("postgres", up)
	h.RegisterOptional("redis", down)

	_, resp := serveReadiness(t, h)

	require.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusUp, resp.Checks["postgres"].Status)
	assert.True(t, resp.Checks["postgres"].Critical)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
	assert.False(t, resp.Checks["redis"].Critical)
}

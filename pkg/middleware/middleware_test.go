package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error.Code
}

// --- Auth ---

func stubValidator(token string) (*Claims, error) {
	if token == "good" {
		return &Claims{UserID: "u-1", Email: "a@example.com", Role: "seller"}, nil
	}
	return nil, errors.New("bad token")
}

func TestAuth(t *testing.T) {
	var gotUser, gotRole string
	h := Auth(stubValidator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
		{"lowercase scheme", "bearer good", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser, gotRole = "", ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "u-1", gotUser)
				assert.Equal(t, "seller", gotRole)
			} else {
				assert.Equal(t, "UNAUTHORIZED", decodeErrorCode(t, rec.Body))
			}
		})
	}
}

func TestOptionalAuth_AllowsAnonymous(t *testing.T) {
	called := false
	h := OptionalAuth(stubValidator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Empty(t, UserIDFromContext(r.Context()))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalAuth_RejectsBadToken(t *testing.T) {
	h := OptionalAuth(stubValidator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), "u-1", "buyer")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeErrorCode(t, rec.Body))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), "u-2", "admin")))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// --- Recovery ---

func TestRecovery(t *testing.T) {
	h := Recovery(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeErrorCode(t, rec.Body))
}

// --- RequestLogging / RequestLogger ---

func TestRequestLogging_ReusesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	h := RequestLogging(l)(RequestLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set(CorrelationHeader, "corr-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "corr-42", seen)
	assert.Equal(t, "corr-42", rec.Header().Get(CorrelationHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, float64(http.StatusCreated), line["status"])
	assert.Equal(t, "/orders", line["path"])
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	h := RequestLogging(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(CorrelationHeader), 36)
}

// --- RateLimit ---

func TestRateLimit_PerClientBucket(t *testing.T) {
	store := newVisitorStore(1, 2, time.Minute)
	h := rateLimitWith(store, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:1236"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:1234"))
	assert.Equal(t, 2, store.size())
}

func TestVisitorStore_EvictIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newVisitorStore(5, 5, time.Minute)
	store.now = func() time.Time { return now }

	store.limiter("1.1.1.1")
	now = now.Add(30 * time.Second)
	store.limiter("2.2.2.2")
	now = now.Add(45 * time.Second)
	store.evictIdle()

	assert.Equal(t, 1, store.size())
}

func TestRateLimit_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mw := RateLimit(ctx, 10, 10, newTestLogger())
	require.NotNil(t, mw)
	cancel()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "", "10.0.0.1:80", "203.0.113.7"},
		{"real ip", "", "198.51.100.2", "10.0.0.1:80", "198.51.100.2"},
		{"garbage forwarded", "not-an-ip", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote only", "", "", "192.0.2.9:5555", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

// --- IPAllowlist ---

func TestIPAllowlist(t *testing.T) {
	h := IPAllowlist([]string{"127.0.0.0/8", "not-a-cidr"}, newTestLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "127.0.0.1:9000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.RemoteAddr = "203.0.113.5:9000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// --- PrometheusMetrics / Tracing ---

func TestMetricsAndTracing_UseRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("test"), Tracing("test"))
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/{id}", routePattern(r))
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

// counterValue reads the counter of vec carrying exactly the given labels.
func counterValue(t *testing.T, vec prometheus.Collector, labels map[string]string) (float64, bool) {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	vec.Collect(ch)
	close(ch)

	for m := range ch {
		var d dto.Metric
		require.NoError(t, m.Write(&d))
		got := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		if assert.ObjectsAreEqual(labels, got) {
			return d.GetCounter().GetValue(), true
		}
	}
	return 0, false
}

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-test"))
	r.Put("/orders/{id}/ship", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/orders/"+id+"/ship", nil))
	}

	n, ok := counterValue(t, httpRequestsTotal, map[string]string{
		"service": "metrics-test", "method": http.MethodPut, "route": "/orders/{id}/ship", "status": "409",
	})
	require.True(t, ok)
	assert.Equal(t, float64(3), n)
}

func TestStatusRecorder_DefaultsToOK(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	_, err := rec.Write([]byte("hi"))
	require.NoError(t, err)
	rec.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, 2, rec.bytes)
}

package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/auth"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/config"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

const (
	testSecret = "app-test-secret"
	seededUser = "7b1f4a5e-2a51-4c1e-9d3b-2f8f0c6d1a01"
)

func writeSeed(t *testing.T) string {
	t.Helper()
	seed := `{
		"users": [{"id": "` + seededUser + `", "email": "ola@madebyu.test", "display_name": "Ola"}],
		"products": [{"id": "0d9c7e62-6a0b-4f0e-8b7a-3c1d2e4f5a60", "seller_id": "` + seededUser + `",
			"category_id": 1, "name": "Wool scarf", "price": "49.90", "stock_quantity": 3}]
	}`
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))
	return path
}

func memoryConfig(seedFile string) *config.Config {
	return &config.Config{
		Environment:     "test",
		HTTPPort:        0,
		ShutdownTimeout: time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  100,
		StorageDriver:   config.StorageMemory,
		SeedFile:        seedFile,
		JWTSecret:       testSecret,
		JWTExpiry:       time.Hour,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := NewApp(memoryConfig(writeSeed(t)), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestNewApp_MemoryStoreServesHealth(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestNewApp_SeededUserIsAuthenticated(t *testing.T) {
	a := newTestApp(t)
	jwt := auth.NewJWTManager(testSecret, "", time.Hour)

	request := func(userID string) *httptest.ResponseRecorder {
		token, err := jwt.GenerateAccessToken(userID, "someone@madebyu.test", domain.RoleUser)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := request(seededUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 0, body.Data.Count)

	rec = request("5e0b3f0c-0000-4000-8000-000000000000")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewApp_BadSeedFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewApp(memoryConfig(filepath.Join(t.TempDir(), "missing.json")), logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read seed file")
}

func TestShutdown_IsIdempotent(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())
}

package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/api"
	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := api.NewServer(api.DefaultConfig(), repo, nil, logger) // nil service for read-only tests
	return server, repo
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response.Status)
}

func TestServer_ReconciliationEndpoints(t *testing.T) {
	server, repo := newTestServer(t)
	require.NoError(t, repo.SaveRun(context.Background(), &storage.ReconciliationRun{
		ID:          "run-1",
		AccountID:   "35",
		Status:      storage.StatusBalanced,
		MatchRate:   100,
		GeneratedAt: time.Now(),
		ReportJSON:  `{"summary":{"match_rate":100}}`,
	}, nil))

	t.Run("GET /api/reconciliations lists runs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/reconciliations?account_id=35", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 1, response.TotalCount)
	})

	t.Run("GET /api/reconciliations/:id routes the ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/reconciliations/run-1", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunDetailResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "run-1", response.ID)
	})

	t.Run("GET /api/reconciliations/:id/unmatched", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/reconciliations/run-1/unmatched", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("GET /api/stats", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.StatsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 1, response.TotalRuns)
	})

	t.Run("POST is not routed without a service", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/reconciliations", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_CORS(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("sets CORS headers for allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("handles OPTIONS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/reconciliations", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{API: config.APIConfig{Port: "9000", AllowedOrigins: []string{"*"}}}

	got := api.ConfigFrom(cfg)

	assert.Equal(t, "9000", got.Port)
	assert.Equal(t, []string{"*"}, got.AllowedOrigins)
	assert.Equal(t, config.DefaultPort, api.ConfigFrom(nil).Port)
}

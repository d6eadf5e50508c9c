package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/api/handlers"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/report"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

func getHealth(t *testing.T, handler http.Handler) (int, dto.HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var response dto.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return rec.Code, response
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	t.Run("reports the engine and a reachable store", func(t *testing.T) {
		// Arrange
		handler := handlers.NewHealthHandler(storage.NewMockRepository(), true)

		// Act
		code, response := getHealth(t, handler)

		// Assert
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, dto.HealthOK, response.Status)
		assert.Equal(t, dto.HealthOK, response.Database)
		assert.Equal(t, report.EngineVersion, response.EngineVersion)
		assert.True(t, response.AcceptsUploads)
		assert.NotEmpty(t, response.Timestamp)
	})

	t.Run("returns 503 when the store does not answer", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.PingErr = errors.New("database is locked")
		handler := handlers.NewHealthHandler(repo, false)

		code, response := getHealth(t, handler)

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, dto.HealthDegraded, response.Status)
		assert.Equal(t, "database is locked", response.Database)
		assert.False(t, response.AcceptsUploads)
	})
}

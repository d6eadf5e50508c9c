package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// healthPingTimeout bounds the database check so a locked SQLite file cannot
// hang a load balancer health check.
const healthPingTimeout = 2 * time.Second

// HealthHandler reports whether the server can store and serve runs.
type HealthHandler struct {
	*Base
	acceptsUploads bool
}

// NewHealthHandler creates a health handler. acceptsUploads tells clients
// whether POST /api/reconciliations is mounted.
func NewHealthHandler(repo storage.Repository, acceptsUploads bool) *HealthHandler {
	return &HealthHandler{Base: NewBase(repo), acceptsUploads: acceptsUploads}
}

// ServeHTTP answers 200 when the run store responds and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var dbErr error
	if h.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		dbErr = h.repo.Ping(ctx)
	}

	resp := dto.NewHealthResponse(h.acceptsUploads, dbErr)
	status := http.StatusOK
	if resp.Status != dto.HealthOK {
		status = http.StatusServiceUnavailable
	}
	h.WriteJSON(w, status, resp)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// Base carries the run store and the response helpers shared by handlers.
type Base struct {
	repo storage.Repository
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository) *Base {
	return &Base{repo: repo}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// loadRun resolves the {id} path parameter to a stored run. On failure the
// response has been written and the second result is false.
func (b *Base) loadRun(w http.ResponseWriter, r *http.Request) (*storage.ReconciliationRun, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		b.WriteError(w, http.StatusBadRequest, dto.FieldError("id", "run ID is required"))
		return nil, false
	}

	run, err := b.repo.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError("reconciliation run"))
		return nil, false
	case err != nil:
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return nil, false
	}
	return run, true
}

// queryInt reads a non-negative integer query parameter. A missing value is
// def; anything that is not a whole number >= 0 is a field error.
func queryInt(r *http.Request, name string, def int) (int, *dto.APIError) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		e := dto.FieldError(name, name+" must be a non-negative integer")
		return 0, &e
	}
	return n, nil
}

package handlers

import (
	"net/http"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// RunsHandler handles stored reconciliation run requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/reconciliations - returns stored runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := dto.DefaultRunListParams()
	params.AccountID = r.URL.Query().Get("account_id")
	params.Status = r.URL.Query().Get("status")
	var apiErr *dto.APIError
	if params.Limit, apiErr = queryInt(r, "limit", params.Limit); apiErr != nil {
		h.WriteError(w, http.StatusBadRequest, *apiErr)
		return
	}
	if params.Offset, apiErr = queryInt(r, "offset", params.Offset); apiErr != nil {
		h.WriteError(w, http.StatusBadRequest, *apiErr)
		return
	}

	switch params.Status {
	case "", storage.StatusBalanced, storage.StatusNeedsReview:
	default:
		h.WriteError(w, http.StatusBadRequest, dto.FieldError("status", "status must be balanced or needs_review"))
		return
	}

	result, err := h.repo.ListRuns(r.Context(), storage.RunFilters{
		AccountID: params.AccountID,
		Status:    params.Status,
		Limit:     params.Limit,
		Offset:    params.Offset,
	})
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:       make([]dto.RunResponse, 0, len(result.Runs)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, run := range result.Runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/reconciliations/{id} - returns a run and its report.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.RunDetailResponse{
		RunResponse: toRunResponse(run),
		Report:      run.Report(),
	})
}

// Unmatched handles GET /api/reconciliations/{id}/unmatched.
func (h *RunsHandler) Unmatched(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	id := run.ID

	rows, err := h.repo.ListUnmatched(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.UnmatchedListResponse{
		RunID:     id,
		Ledger:    make([]dto.UnmatchedResponse, 0),
		Statement: make([]dto.UnmatchedResponse, 0),
	}
	for _, u := range rows {
		item := dto.UnmatchedResponse{
			SourceID:    u.SourceID,
			Date:        u.Date,
			Amount:      u.Amount,
			Description: u.Description,
		}
		if u.Side == storage.SideLedger {
			response.Ledger = append(response.Ledger, item)
		} else {
			response.Statement = append(response.Statement, item)
		}
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// toRunResponse converts a stored run to an API response.
func toRunResponse(run *storage.ReconciliationRun) dto.RunResponse {
	resp := dto.RunResponse{
		ID:                 run.ID,
		AccountID:          run.AccountID,
		StartDate:          run.StartDate,
		EndDate:            run.EndDate,
		Tolerance:          run.Tolerance,
		LedgerCount:        run.LedgerCount,
		StatementCount:     run.StatementCount,
		TotalMatched:       run.TotalMatched,
		UnmatchedLedger:    run.UnmatchedLedger,
		UnmatchedStatement: run.UnmatchedStatement,
		SkippedRows:        run.SkippedRows,
		MatchRate:          run.MatchRate,
		Status:             run.Status,
		GeneratedAt:        run.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if !run.CreatedAt.IsZero() {
		resp.CreatedAt = run.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

package handlers

import (
	"net/http"
	"sort"

	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// StatsHandler handles stats-related HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	// Convert account stats map to slice for easier frontend consumption
	accounts := make([]dto.AccountStatsResponse, 0, len(stats.AccountStats))
	for accountID, as := range stats.AccountStats {
		accounts = append(accounts, dto.AccountStatsResponse{
			AccountID:     accountID,
			Runs:          as.Runs,
			LastMatchRate: as.LastMatchRate,
			LastRunAt:     as.LastRunAt,
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].AccountID < accounts[j].AccountID })

	response := dto.StatsResponse{
		TotalRuns:        stats.TotalRuns,
		BalancedRuns:     stats.BalancedRuns,
		NeedsReviewRuns:  stats.NeedsReviewRuns,
		AverageMatchRate: stats.AverageMatchRate,
		Accounts:         accounts,
	}

	h.WriteJSON(w, http.StatusOK, response)
}

package dto

import (
	"encoding/json"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/report"
)

// Health states
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthResponse is returned by the health check endpoint. Database is "ok"
// or the reason the run store cannot be reached.
type HealthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	EngineVersion  string `json:"engine_version"`
	AcceptsUploads bool   `json:"accepts_uploads"`
	Database       string `json:"database"`
}

// NewHealthResponse reports the engine version and the run store state.
// A nil dbErr means the store answered.
func NewHealthResponse(acceptsUploads bool, dbErr error) HealthResponse {
	resp := HealthResponse{
		Status:         HealthOK,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		EngineVersion:  report.EngineVersion,
		AcceptsUploads: acceptsUploads,
		Database:       HealthOK,
	}
	if dbErr != nil {
		resp.Status = HealthDegraded
		resp.Database = dbErr.Error()
	}
	return resp
}

// SkippedRowResponse describes a statement row that was left out.
type SkippedRowResponse struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"`
}

// ReconcileResponse is returned after a reconciliation has run.
type ReconcileResponse struct {
	RunID          string               `json:"run_id"`
	Status         string               `json:"status"`
	Saved          bool                 `json:"saved"`
	SkippedRows    []SkippedRowResponse `json:"skipped_rows"`
	MissingColumns []string             `json:"missing_columns,omitempty"`
	Report         *report.Report       `json:"report"`
}

// RunResponse represents a stored reconciliation run in API responses.
type RunResponse struct {
	ID                 string  `json:"id"`
	AccountID          string  `json:"account_id"`
	StartDate          string  `json:"start_date"`
	EndDate            string  `json:"end_date"`
	Tolerance          string  `json:"tolerance"`
	LedgerCount        int     `json:"ledger_count"`
	StatementCount     int     `json:"statement_count"`
	TotalMatched       int     `json:"total_matched"`
	UnmatchedLedger    int     `json:"unmatched_ledger"`
	UnmatchedStatement int     `json:"unmatched_statement"`
	SkippedRows        int     `json:"skipped_rows"`
	MatchRate          float64 `json:"match_rate"`
	Status             string  `json:"status"`
	GeneratedAt        string  `json:"generated_at"`
	CreatedAt          string  `json:"created_at,omitempty"`
}

// RunDetailResponse is a run together with its full stored report.
type RunDetailResponse struct {
	RunResponse
	Report json.RawMessage `json:"report,omitempty"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs       []RunResponse `json:"runs"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// UnmatchedResponse is one record left over after matching.
type UnmatchedResponse struct {
	SourceID    string `json:"source_id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// UnmatchedListResponse groups a run's leftovers by side.
type UnmatchedListResponse struct {
	RunID     string              `json:"run_id"`
	Ledger    []UnmatchedResponse `json:"ledger"`
	Statement []UnmatchedResponse `json:"statement"`
}

// AccountStatsResponse represents per-account statistics.
type AccountStatsResponse struct {
	AccountID     string  `json:"account_id"`
	Runs          int     `json:"runs"`
	LastMatchRate float64 `json:"last_match_rate"`
	LastRunAt     string  `json:"last_run_at"`
}

// StatsResponse is returned by the stats endpoint.
type StatsResponse struct {
	TotalRuns        int                    `json:"total_runs"`
	BalancedRuns     int                    `json:"balanced_runs"`
	NeedsReviewRuns  int                    `json:"needs_review_runs"`
	AverageMatchRate float64                `json:"average_match_rate"`
	Accounts         []AccountStatsResponse `json:"accounts"`
}

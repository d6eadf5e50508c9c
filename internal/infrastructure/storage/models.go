package storage

import (
	"encoding/json"
	"time"
)

// Run statuses
const (
	StatusBalanced    = "balanced"
	StatusNeedsReview = "needs_review"
)

// Sides of an unmatched record
const (
	SideLedger    = "ledger"
	SideStatement = "statement"
)

// ReconciliationRun is the stored summary of one reconciliation.
// Dates are kept as YYYY-MM-DD strings and money as decimal strings so
// nothing is lost in SQLite's REAL type.
type ReconciliationRun struct {
	ID                 string    `json:"id"`
	AccountID          string    `json:"account_id"`
	StartDate          string    `json:"start_date"`
	EndDate            string    `json:"end_date"`
	Tolerance          string    `json:"tolerance"`
	LedgerCount        int       `json:"ledger_count"`
	StatementCount     int       `json:"statement_count"`
	TotalMatched       int       `json:"total_matched"`
	UnmatchedLedger    int       `json:"unmatched_ledger"`
	UnmatchedStatement int       `json:"unmatched_statement"`
	SkippedRows        int       `json:"skipped_rows"`
	MatchRate          float64   `json:"match_rate"`
	Status             string    `json:"status"`
	GeneratedAt        time.Time `json:"generated_at"`
	CreatedAt          time.Time `json:"created_at"`

	// Full report as written to disk
	ReportJSON string `json:"-"` // For DB storage
}

// Report returns the stored report as raw JSON.
func (r *ReconciliationRun) Report() json.RawMessage {
	if r.ReportJSON == "" {
		return nil
	}
	return json.RawMessage(r.ReportJSON)
}

// UnmatchedTransaction is a record left over on either side of a run.
type UnmatchedTransaction struct {
	RunID       string `json:"run_id"`
	Side        string `json:"side"`
	SourceID    string `json:"source_id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Stats contains aggregate statistics over stored runs
type Stats struct {
	TotalRuns        int                     `json:"total_runs"`
	BalancedRuns     int                     `json:"balanced_runs"`
	NeedsReviewRuns  int                     `json:"needs_review_runs"`
	AverageMatchRate float64                 `json:"average_match_rate"`
	AccountStats     map[string]AccountStats `json:"account_stats"`
}

// AccountStats contains per-account statistics
type AccountStats struct {
	Runs          int     `json:"runs"`
	LastMatchRate float64 `json:"last_match_rate"`
	LastRunAt     string  `json:"last_run_at"`
}

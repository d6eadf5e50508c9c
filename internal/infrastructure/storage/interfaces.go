package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("reconciliation run not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	RunRepository
	Ping(ctx context.Context) error
	Close() error
}

// RunRepository handles reconciliation run operations
type RunRepository interface {
	// SaveRun stores a finished run together with its unmatched records.
	// Saving a run with an existing ID replaces it.
	SaveRun(ctx context.Context, run *ReconciliationRun, unmatched []UnmatchedTransaction) error

	// GetRun retrieves a run by ID, including the stored report JSON
	GetRun(ctx context.Context, id string) (*ReconciliationRun, error)

	// ListRuns returns runs matching the given filters with pagination
	ListRuns(ctx context.Context, filters RunFilters) (*RunListResult, error)

	// ListUnmatched returns the unmatched records of a run, ledger side first
	ListUnmatched(ctx context.Context, runID string) ([]UnmatchedTransaction, error)

	// GetStats returns aggregate statistics
	GetStats(ctx context.Context) (*Stats, error)
}

// RunFilters defines filters for listing runs
type RunFilters struct {
	AccountID string // Filter by account (empty = all)
	Status    string // Filter by status (empty = all)
	Limit     int    // Max results (0 = default 50)
	Offset    int    // Pagination offset
}

// RunListResult contains paginated run results
type RunListResult struct {
	Runs       []*ReconciliationRun `json:"runs"`
	TotalCount int                  `json:"total_count"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f RunFilters) normalized() RunFilters {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

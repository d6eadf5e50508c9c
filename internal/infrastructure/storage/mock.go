package storage

import (
	"context"
	"sort"
	"sync"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu        sync.Mutex
	runs      map[string]*ReconciliationRun
	unmatched map[string][]UnmatchedTransaction

	// Hooks for test assertions
	SaveRunCalled bool
	LastSavedRun  *ReconciliationRun

	// Error injection for testing error paths
	SaveRunErr  error
	GetRunErr   error
	ListRunsErr error
	StatsErr    error
	PingErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:      make(map[string]*ReconciliationRun),
		unmatched: make(map[string][]UnmatchedTransaction),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Ping returns PingErr
func (m *MockRepository) Ping(_ context.Context) error {
	return m.PingErr
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRun saves a run to the in-memory map
func (m *MockRepository) SaveRun(_ context.Context, run *ReconciliationRun, unmatched []UnmatchedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveRunCalled = true
	m.LastSavedRun = run
	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}
	// Copy to avoid test mutations
	copied := *run
	m.runs[run.ID] = &copied

	rows := make([]UnmatchedTransaction, len(unmatched))
	for i, u := range unmatched {
		u.RunID = run.ID
		rows[i] = u
	}
	m.unmatched[run.ID] = rows
	return nil
}

// GetRun retrieves a run from the in-memory map
func (m *MockRepository) GetRun(_ context.Context, id string) (*ReconciliationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetRunErr != nil {
		return nil, m.GetRunErr
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns runs newest first, filtered and paginated
func (m *MockRepository) ListRuns(_ context.Context, filters RunFilters) (*RunListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}
	filters = filters.normalized()

	var all []*ReconciliationRun
	for _, run := range m.runs {
		if filters.AccountID != "" && run.AccountID != filters.AccountID {
			continue
		}
		if filters.Status != "" && run.Status != filters.Status {
			continue
		}
		copied := *run
		copied.ReportJSON = ""
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].GeneratedAt.Equal(all[j].GeneratedAt) {
			return all[i].GeneratedAt.After(all[j].GeneratedAt)
		}
		return all[i].ID < all[j].ID
	})

	result := &RunListResult{
		Runs:       make([]*ReconciliationRun, 0),
		TotalCount: len(all),
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}
	if filters.Offset < len(all) {
		end := filters.Offset + filters.Limit
		if end > len(all) {
			end = len(all)
		}
		result.Runs = append(result.Runs, all[filters.Offset:end]...)
	}
	return result, nil
}

// ListUnmatched returns the stored unmatched records, ledger side first
func (m *MockRepository) ListUnmatched(_ context.Context, runID string) ([]UnmatchedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]UnmatchedTransaction, 0)
	for _, side := range []string{SideLedger, SideStatement} {
		for _, u := range m.unmatched[runID] {
			if u.Side == side {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

// GetStats computes statistics over the stored runs
func (m *MockRepository) GetStats(_ context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StatsErr != nil {
		return nil, m.StatsErr
	}

	stats := &Stats{AccountStats: make(map[string]AccountStats)}
	var rateSum float64
	latest := make(map[string]*ReconciliationRun)
	for _, run := range m.runs {
		stats.TotalRuns++
		rateSum += run.MatchRate
		switch run.Status {
		case StatusBalanced:
			stats.BalancedRuns++
		case StatusNeedsReview:
			stats.NeedsReviewRuns++
		}

		as := stats.AccountStats[run.AccountID]
		as.Runs++
		stats.AccountStats[run.AccountID] = as
		if prev, ok := latest[run.AccountID]; !ok || run.GeneratedAt.After(prev.GeneratedAt) {
			latest[run.AccountID] = run
		}
	}
	if stats.TotalRuns > 0 {
		stats.AverageMatchRate = rateSum / float64(stats.TotalRuns)
	}
	for account, run := range latest {
		as := stats.AccountStats[account]
		as.LastMatchRate = run.MatchRate
		as.LastRunAt = run.GeneratedAt.UTC().Format("2006-01-02 15:04:05")
		stats.AccountStats[account] = as
	}
	return stats, nil
}

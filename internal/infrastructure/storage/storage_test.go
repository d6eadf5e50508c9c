package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id, account string, generatedAt time.Time, rate float64) *ReconciliationRun {
	status := StatusBalanced
	if rate < 95 {
		status = StatusNeedsReview
	}
	return &ReconciliationRun{
		ID:                 id,
		AccountID:          account,
		StartDate:          "2025-10-01",
		EndDate:            "2025-10-31",
		Tolerance:          "0.01",
		LedgerCount:        4,
		StatementCount:     5,
		TotalMatched:       3,
		UnmatchedLedger:    1,
		UnmatchedStatement: 2,
		SkippedRows:        1,
		MatchRate:          rate,
		Status:             status,
		GeneratedAt:        generatedAt,
		ReportJSON:         `{"metadata":{"account_id":"` + account + `"}}`,
	}
}

func TestStorage_SaveAndGetRun(t *testing.T) {
	// Arrange
	store := newTestStorage(t)
	ctx := context.Background()
	generated := time.Date(2025, 11, 1, 9, 30, 0, 0, time.UTC)
	run := sampleRun("run-1", "35", generated, 75)
	unmatched := []UnmatchedTransaction{
		{Side: SideStatement, SourceID: "row-4", Date: "2025-10-03", Amount: "-3.5", Description: "BANK FEE"},
		{Side: SideLedger, SourceID: "201", Date: "2025-10-05", Amount: "200", Description: "client payment"},
	}

	// Act
	err := store.SaveRun(ctx, run, unmatched)
	require.NoError(t, err)
	got, err := store.GetRun(ctx, "run-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "35", got.AccountID)
	assert.Equal(t, "2025-10-01", got.StartDate)
	assert.Equal(t, "0.01", got.Tolerance)
	assert.Equal(t, 3, got.TotalMatched)
	assert.Equal(t, 1, got.SkippedRows)
	assert.Equal(t, 75.0, got.MatchRate)
	assert.Equal(t, StatusNeedsReview, got.Status)
	assert.True(t, generated.Equal(got.GeneratedAt))
	assert.False(t, got.CreatedAt.IsZero())
	assert.JSONEq(t, run.ReportJSON, string(got.Report()))

	rows, err := store.ListUnmatched(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, SideLedger, rows[0].Side, "ledger side is listed first")
	assert.Equal(t, "201", rows[0].SourceID)
	assert.Equal(t, "run-1", rows[0].RunID)
	assert.Equal(t, "BANK FEE", rows[1].Description)
}

func TestStorage_GetRunNotFound(t *testing.T) {
	store := newTestStorage(t)

	run, err := store.GetRun(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, run)
}

func TestStorage_Ping(t *testing.T) {
	store := newTestStorage(t)

	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}

func TestStorage_SaveRunReplacesUnmatched(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	run := sampleRun("run-1", "35", time.Now().UTC(), 100)

	require.NoError(t, store.SaveRun(ctx, run, []UnmatchedTransaction{
		{Side: SideLedger, SourceID: "a", Date: "2025-10-01", Amount: "1"},
	}))
	require.NoError(t, store.SaveRun(ctx, run, nil))

	rows, err := store.ListUnmatched(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStorage_ListRuns(t *testing.T) {
	// Arrange
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, sampleRun("a", "35", base, 100), nil))
	require.NoError(t, store.SaveRun(ctx, sampleRun("b", "35", base.Add(time.Hour), 80), nil))
	require.NoError(t, store.SaveRun(ctx, sampleRun("c", "99", base.Add(2*time.Hour), 96), nil))

	t.Run("newest first", func(t *testing.T) {
		result, err := store.ListRuns(ctx, RunFilters{})
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalCount)
		assert.Equal(t, defaultListLimit, result.Limit)
		require.Len(t, result.Runs, 3)
		assert.Equal(t, "c", result.Runs[0].ID)
		assert.Equal(t, "a", result.Runs[2].ID)
		assert.Empty(t, result.Runs[0].ReportJSON, "list does not load the report body")
	})

	t.Run("by account", func(t *testing.T) {
		result, err := store.ListRuns(ctx, RunFilters{AccountID: "35"})
		require.NoError(t, err)
		assert.Equal(t, 2, result.TotalCount)
		assert.Equal(t, "b", result.Runs[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		result, err := store.ListRuns(ctx, RunFilters{Status: StatusNeedsReview})
		require.NoError(t, err)
		require.Len(t, result.Runs, 1)
		assert.Equal(t, "b", result.Runs[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := store.ListRuns(ctx, RunFilters{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalCount)
		require.Len(t, result.Runs, 1)
		assert.Equal(t, "b", result.Runs[0].ID)
	})
}

func TestStorage_GetStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, sampleRun("a", "35", base, 100), nil))
	require.NoError(t, store.SaveRun(ctx, sampleRun("b", "35", base.Add(time.Hour), 80), nil))
	require.NoError(t, store.SaveRun(ctx, sampleRun("c", "99", base, 90), nil))

	stats, err := store.GetStats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 1, stats.BalancedRuns)
	assert.Equal(t, 2, stats.NeedsReviewRuns)
	assert.InDelta(t, 90.0, stats.AverageMatchRate, 0.001)
	require.Contains(t, stats.AccountStats, "35")
	assert.Equal(t, 2, stats.AccountStats["35"].Runs)
	assert.Equal(t, 80.0, stats.AccountStats["35"].LastMatchRate)
	assert.NotEmpty(t, stats.AccountStats["35"].LastRunAt)
}

func TestStorage_EmptyStats(t *testing.T) {
	store := newTestStorage(t)

	stats, err := store.GetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRuns)
	assert.Equal(t, 0.0, stats.AverageMatchRate)
	assert.Empty(t, stats.AccountStats)
}

func TestMockRepository_BehavesLikeStorage(t *testing.T) {
	repos := map[string]Repository{
		"sqlite": newTestStorage(t),
		"mock":   NewMockRepository(),
	}

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, repo.SaveRun(ctx, sampleRun("a", "35", base, 100), []UnmatchedTransaction{
				{Side: SideStatement, SourceID: "row-9", Date: "2025-10-02", Amount: "-1"},
				{Side: SideLedger, SourceID: "L9", Date: "2025-10-02", Amount: "-2"},
			}))
			require.NoError(t, repo.SaveRun(ctx, sampleRun("b", "35", base.Add(time.Minute), 50), nil))

			list, err := repo.ListRuns(ctx, RunFilters{AccountID: "35", Limit: 10})
			require.NoError(t, err)
			require.Len(t, list.Runs, 2)
			assert.Equal(t, "b", list.Runs[0].ID)

			rows, err := repo.ListUnmatched(ctx, "a")
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "L9", rows[0].SourceID)

			_, err = repo.GetRun(ctx, "zzz")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

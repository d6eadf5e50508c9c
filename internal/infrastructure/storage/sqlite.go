package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for reconciliation runs.
// It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	return NewStorageWithLogger(dbPath, slog.Default())
}

// NewStorageWithLogger is NewStorage with an explicit logger for migration
// output.
func NewStorageWithLogger(dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Foreign keys are a per-connection setting in SQLite, so they go in the
	// DSN rather than a one-off PRAGMA.
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbPath+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db, logger: logger.With(slog.String("component", "storage"))}

	// Run all pending migrations
	if err := s.runMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Ping checks that the database file is still reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and replaces its unmatched records in one transaction
func (s *Storage) SaveRun(ctx context.Context, run *ReconciliationRun, unmatched []UnmatchedTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT OR REPLACE INTO reconciliation_runs
	(id, account_id, start_date, end_date, tolerance,
	 ledger_count, statement_count, total_matched, unmatched_ledger,
	 unmatched_statement, skipped_rows, match_rate, status,
	 generated_at, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.AccountID,
		run.StartDate,
		run.EndDate,
		run.Tolerance,
		run.LedgerCount,
		run.StatementCount,
		run.TotalMatched,
		run.UnmatchedLedger,
		run.UnmatchedStatement,
		run.SkippedRows,
		run.MatchRate,
		run.Status,
		run.GeneratedAt.UTC(),
		run.ReportJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM unmatched_transactions WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear unmatched records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO unmatched_transactions (run_id, side, source_id, date, amount, description)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range unmatched {
		if _, err := stmt.ExecContext(ctx, run.ID, u.Side, u.SourceID, u.Date, u.Amount, u.Description); err != nil {
			return fmt.Errorf("failed to save unmatched %s record %s: %w", u.Side, u.SourceID, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, account_id, start_date, end_date, tolerance,
	       ledger_count, statement_count, total_matched, unmatched_ledger,
	       unmatched_statement, skipped_rows, match_rate, status,
	       generated_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner, extra ...any) (*ReconciliationRun, error) {
	run := &ReconciliationRun{}
	var createdAt sql.NullTime
	dest := []any{
		&run.ID,
		&run.AccountID,
		&run.StartDate,
		&run.EndDate,
		&run.Tolerance,
		&run.LedgerCount,
		&run.StatementCount,
		&run.TotalMatched,
		&run.UnmatchedLedger,
		&run.UnmatchedStatement,
		&run.SkippedRows,
		&run.MatchRate,
		&run.Status,
		&run.GeneratedAt,
		&createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		run.CreatedAt = createdAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(ctx context.Context, id string) (*ReconciliationRun, error) {
	query := `SELECT ` + runColumns + `, report_json FROM reconciliation_runs WHERE id = ?`

	var reportJSON string
	run, err := scanRun(s.db.QueryRowContext(ctx, query, id), &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.ReportJSON = reportJSON
	return run, nil
}

// ListRuns returns runs newest first
func (s *Storage) ListRuns(ctx context.Context, filters RunFilters) (*RunListResult, error) {
	filters = filters.normalized()

	var where []string
	var args []any
	if filters.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, filters.AccountID)
	}
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filters.Status)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reconciliation_runs`+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM reconciliation_runs` + whereClause +
		` ORDER BY generated_at DESC, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &RunListResult{
		Runs:       make([]*ReconciliationRun, 0),
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result.Runs = append(result.Runs, run)
	}
	return result, rows.Err()
}

// ListUnmatched returns the unmatched records stored for a run
func (s *Storage) ListUnmatched(ctx context.Context, runID string) ([]UnmatchedTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, side, source_id, date, amount, description
		FROM unmatched_transactions
		WHERE run_id = ?
		ORDER BY CASE side WHEN 'ledger' THEN 0 ELSE 1 END, id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]UnmatchedTransaction, 0)
	for rows.Next() {
		var u UnmatchedTransaction
		if err := rows.Scan(&u.RunID, &u.Side, &u.SourceID, &u.Date, &u.Amount, &u.Description); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetStats returns run statistics
func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		AccountStats: make(map[string]AccountStats),
	}

	query := `
	SELECT
		COUNT(*) as total,
		COUNT(CASE WHEN status = 'balanced' THEN 1 END) as balanced,
		COUNT(CASE WHEN status = 'needs_review' THEN 1 END) as needs_review,
		COALESCE(AVG(match_rate), 0) as avg_rate
	FROM reconciliation_runs
	`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalRuns,
		&stats.BalancedRuns,
		&stats.NeedsReviewRuns,
		&stats.AverageMatchRate,
	)
	if err != nil {
		return nil, err
	}

	// Per-account breakdown; the latest run's rate comes from a correlated subquery
	accountQuery := `
	SELECT
		r.account_id,
		COUNT(*) as runs,
		(SELECT match_rate FROM reconciliation_runs l
		 WHERE l.account_id = r.account_id
		 ORDER BY l.generated_at DESC LIMIT 1) as last_rate,
		MAX(r.generated_at) as last_run
	FROM reconciliation_runs r
	GROUP BY r.account_id
	`
	rows, err := s.db.QueryContext(ctx, accountQuery)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var account string
		var as AccountStats
		var lastRun sql.NullString
		if err := rows.Scan(&account, &as.Runs, &as.LastMatchRate, &lastRun); err != nil {
			return nil, err
		}
		as.LastRunAt = lastRun.String
		stats.AccountStats[account] = as
	}

	return stats, rows.Err()
}

package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateReconciliationRuns, downCreateReconciliationRuns)
}

func upCreateReconciliationRuns(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		tolerance TEXT NOT NULL,
		ledger_count INTEGER NOT NULL DEFAULT 0,
		statement_count INTEGER NOT NULL DEFAULT 0,
		total_matched INTEGER NOT NULL DEFAULT 0,
		unmatched_ledger INTEGER NOT NULL DEFAULT 0,
		unmatched_statement INTEGER NOT NULL DEFAULT 0,
		skipped_rows INTEGER NOT NULL DEFAULT 0,
		match_rate REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_account
	ON reconciliation_runs(account_id, generated_at DESC)`)
	return err
}

func downCreateReconciliationRuns(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS reconciliation_runs`)
	return err
}

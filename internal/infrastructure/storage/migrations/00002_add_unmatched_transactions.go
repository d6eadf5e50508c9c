package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddUnmatchedTransactions, downAddUnmatchedTransactions)
}

// upAddUnmatchedTransactions stores leftovers row by row so they can be
// listed without decoding the whole report.
func upAddUnmatchedTransactions(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS unmatched_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES reconciliation_runs(id) ON DELETE CASCADE,
		side TEXT NOT NULL CHECK (side IN ('ledger', 'statement')),
		source_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	CREATE INDEX IF NOT EXISTS idx_unmatched_transactions_run
	ON unmatched_transactions(run_id)`)
	return err
}

func downAddUnmatchedTransactions(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS unmatched_transactions`)
	return err
}

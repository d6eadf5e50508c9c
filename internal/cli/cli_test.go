package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

const testStatement = `Date,Description,Debit,Credit
2025-10-01,OFFICE SUPPLIES CO,50.00,
2025-10-03,BANK FEE,3.50,
2025-10-05,Client payment,,1200.50
`

const testLedger = `{
  "account_id": "35",
  "transactions": [
    {"type": "Purchase", "id": "101", "date": "2025-10-01", "amount": "-50.00", "payee": "Office Supplies Co", "memo": "office supplies"},
    {"type": "Deposit", "id": "201", "date": "2025-10-05", "amount": "1200.50", "payee": "Deposit", "memo": "Client payment"},
    {"type": "Deposit", "id": "202", "date": "2025-10-03", "amount": "-3.50", "payee": "Bank", "memo": "bank fee"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testFlags(t *testing.T) ReconcileFlags {
	t.Helper()
	dir := t.TempDir()
	return ReconcileFlags{
		AccountID:     "35",
		StatementFile: writeFile(t, dir, "statement.csv", testStatement),
		LedgerFile:    writeFile(t, dir, "ledger.json", testLedger),
		Output:        filepath.Join(dir, "report.json"),
		DBPath:        filepath.Join(dir, "runs.db"),
		MinMatchRate:  -1,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseReconcileFlags(t *testing.T) {
	t.Run("parses all flags", func(t *testing.T) {
		flags, err := ParseReconcileFlags([]string{
			"-account-id", "35",
			"-statement-file", "s.csv",
			"-ledger-file", "l.json",
			"-start-date", "2025-10-01",
			"-end-date", "2025-10-31",
			"-tolerance", "0.05",
			"-min-match-rate", "80",
			"-verbose",
		}, io.Discard)

		require.NoError(t, err)
		assert.Equal(t, "35", flags.AccountID)
		assert.Equal(t, DefaultOutputPath, flags.Output)
		assert.True(t, flags.Verbose)

		start, end, err := flags.Dates()
		require.NoError(t, err)
		assert.Equal(t, "2025-10-01", start.String())
		assert.Equal(t, "2025-10-31", end.String())

		tol, err := flags.ToleranceOverride()
		require.NoError(t, err)
		assert.Equal(t, "0.05", tol.String())
		require.NotNil(t, flags.MinMatchRateOverride())
		assert.Equal(t, 80.0, *flags.MinMatchRateOverride())
	})

	t.Run("leaves optional values unset", func(t *testing.T) {
		flags, err := ParseReconcileFlags([]string{"-account-id", "35", "-statement-file", "s.csv", "-ledger-file", "l.json"}, io.Discard)

		require.NoError(t, err)
		tol, err := flags.ToleranceOverride()
		require.NoError(t, err)
		assert.Nil(t, tol)
		assert.Nil(t, flags.MinMatchRateOverride())
		start, end, err := flags.Dates()
		require.NoError(t, err)
		assert.True(t, start.IsZero())
		assert.True(t, end.IsZero())
	})

	t.Run("reports every missing required flag", func(t *testing.T) {
		_, err := ParseReconcileFlags([]string{"-account-id", "35"}, io.Discard)

		require.ErrorIs(t, err, ErrMissingFlag)
		assert.Contains(t, err.Error(), "-statement-file")
		assert.Contains(t, err.Error(), "-ledger-file")
		assert.True(t, IsUsageError(err))
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		base := []string{"-account-id", "35", "-statement-file", "s.csv", "-ledger-file", "l.json"}

		_, err := ParseReconcileFlags(append(base, "-start-date", "10/01/2025"), io.Discard)
		assert.ErrorContains(t, err, "-start-date")

		_, err = ParseReconcileFlags(append(base, "-tolerance", "cheap"), io.Discard)
		assert.ErrorContains(t, err, "-tolerance")
	})
}

func TestRunReconcile(t *testing.T) {
	t.Run("writes the report, stores the run and exits 0", func(t *testing.T) {
		// Arrange
		flags := testFlags(t)
		var out bytes.Buffer

		// Act
		code, err := RunReconcile(context.Background(), config.LoadFromEnv(), flags, &out, quietLogger())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, ExitOK, code)
		assert.Contains(t, out.String(), "Matched Transactions: 3")
		assert.Contains(t, out.String(), "Match Rate: 100.0%")
		assert.Contains(t, out.String(), "SUCCESS")
		assert.Contains(t, out.String(), "Period: 2025-10-01 to 2025-10-05")

		data, err := os.ReadFile(flags.Output)
		require.NoError(t, err)
		var written map[string]any
		require.NoError(t, json.Unmarshal(data, &written))
		assert.Contains(t, written, "matched_transactions")

		store, err := storage.NewStorage(flags.DBPath)
		require.NoError(t, err)
		defer store.Close()
		runs, err := store.ListRuns(context.Background(), storage.RunFilters{AccountID: "35"})
		require.NoError(t, err)
		assert.Equal(t, 1, runs.TotalCount)
	})

	t.Run("exits 1 below the minimum match rate", func(t *testing.T) {
		flags := testFlags(t)
		flags.LedgerFile = writeFile(t, t.TempDir(), "ledger.json", `{
  "account_id": "35",
  "transactions": [
    {"type": "Purchase", "id": "101", "date": "2025-10-01", "amount": "-50.00", "memo": "office supplies"},
    {"type": "Purchase", "id": "102", "date": "2025-10-04", "amount": "-99.00", "memo": "rent"}
  ]
}`)
		flags.NoSave = true
		var out bytes.Buffer

		code, err := RunReconcile(context.Background(), config.LoadFromEnv(), flags, &out, quietLogger())

		require.NoError(t, err)
		assert.Equal(t, ExitNeedsReview, code)
		assert.Contains(t, out.String(), "Match Rate: 50.0%")
		assert.Contains(t, out.String(), "WARNING: Match rate below 95%")
		assert.Contains(t, out.String(), "UNMATCHED LEDGER TRANSACTIONS")
		assert.Contains(t, out.String(), "2025-10-04 |       -99.00 | rent")
		assert.Contains(t, out.String(), "UNMATCHED BANK TRANSACTIONS")
		assert.NoFileExists(t, flags.DBPath)
	})

	t.Run("a lower bar passes the same run", func(t *testing.T) {
		flags := testFlags(t)
		flags.LedgerFile = writeFile(t, t.TempDir(), "ledger.json", `{"account_id": "35", "transactions": [
    {"type": "Purchase", "id": "101", "date": "2025-10-01", "amount": "-50.00", "memo": "office supplies"},
    {"type": "Purchase", "id": "102", "date": "2025-10-04", "amount": "-99.00", "memo": "rent"}
  ]}`)
		flags.NoSave = true
		flags.MinMatchRate = 50

		code, err := RunReconcile(context.Background(), config.LoadFromEnv(), flags, io.Discard, quietLogger())

		require.NoError(t, err)
		assert.Equal(t, ExitOK, code)
	})

	t.Run("exits 2 when the ledger file is missing", func(t *testing.T) {
		flags := testFlags(t)
		flags.LedgerFile = filepath.Join(t.TempDir(), "missing.json")

		code, err := RunReconcile(context.Background(), config.LoadFromEnv(), flags, io.Discard, quietLogger())

		require.Error(t, err)
		assert.Equal(t, ExitError, code)
		assert.NoFileExists(t, flags.Output)
	})

	t.Run("exits 2 on a reversed range", func(t *testing.T) {
		flags := testFlags(t)
		flags.StartDate = "2025-10-31"
		flags.EndDate = "2025-10-01"

		code, err := RunReconcile(context.Background(), config.LoadFromEnv(), flags, io.Discard, quietLogger())

		require.Error(t, err)
		assert.Equal(t, ExitError, code)
		assert.True(t, IsUsageError(err))
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "recon.yaml", "reconciliation:\n  tolerance: \"0.25\"\n")

		cfg, err := LoadConfig(path, quietLogger())

		require.NoError(t, err)
		assert.Equal(t, "0.25", cfg.Reconciliation.Tolerance)
	})

	t.Run("bad file is an error", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "recon.yaml", "reconciliation:\n  tolerance: \"-1\"\n")

		_, err := LoadConfig(path, quietLogger())

		assert.Error(t, err)
	})
}

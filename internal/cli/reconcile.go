package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/ledger"
	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// Exit codes of the reconcile command.
const (
	ExitOK          = 0
	ExitNeedsReview = 1
	ExitError       = 2
)

// RunReconcile runs one reconciliation from files, writes the report and
// prints the summary to out. The returned code is ExitError whenever err is
// non-nil.
func RunReconcile(ctx context.Context, cfg *config.Config, flags ReconcileFlags, out io.Writer, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.LoadFromEnv()
	}

	opts, err := reconcile.OptionsFromConfig(cfg)
	if err != nil {
		return ExitError, err
	}
	start, end, err := flags.Dates()
	if err != nil {
		return ExitError, err
	}
	tol, err := flags.ToleranceOverride()
	if err != nil {
		return ExitError, err
	}

	var store storage.Repository
	if !flags.NoSave {
		dbPath := cfg.Storage.DatabasePath
		if flags.DBPath != "" {
			dbPath = flags.DBPath
		}
		s, err := storage.NewStorageWithLogger(dbPath, logger)
		if err != nil {
			return ExitError, fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	statementFile, err := os.Open(flags.StatementFile)
	if err != nil {
		return ExitError, fmt.Errorf("failed to open statement: %w", err)
	}
	defer statementFile.Close()

	PrintHeader(out, flags.AccountID)

	svc := reconcile.NewService(opts, store, logger)
	outcome, err := svc.Run(ctx, reconcile.Request{
		AccountID:    flags.AccountID,
		Statement:    statementFile,
		Ledger:       ledger.NewFileSource(flags.LedgerFile, logger),
		StartDate:    start,
		EndDate:      end,
		Tolerance:    tol,
		MinMatchRate: flags.MinMatchRateOverride(),
	})
	if err != nil {
		return ExitError, err
	}

	output := flags.Output
	if output == "" {
		output = DefaultOutputPath
	}
	if err := WriteReport(output, outcome.Report); err != nil {
		return ExitError, err
	}

	PrintSkipped(out, outcome.Skipped, outcome.MissingColumns)
	PrintSummary(out, outcome.Report)
	fmt.Fprintf(out, "\nReport saved to: %s\n", output)
	if outcome.Saved {
		fmt.Fprintf(out, "Run ID: %s\n", outcome.RunID)
	}

	minRate := opts.MinMatchRate
	if r := flags.MinMatchRateOverride(); r != nil {
		minRate = *r
	}
	PrintVerdict(out, outcome, minRate)

	if outcome.NeedsReview() {
		return ExitNeedsReview, nil
	}
	return ExitOK, nil
}

// IsUsageError reports whether err came from bad command-line input.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrMissingFlag) || errors.Is(err, reconcile.ErrInvalidRequest)
}

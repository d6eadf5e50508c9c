package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/report"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/statement"
)

const ruleWidth = 70

// PrintHeader prints the application header
func PrintHeader(w io.Writer, accountID string) {
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintf(w, "BANK RECONCILIATION: account %s\n", accountID)
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
}

// PrintSkipped lists statement rows that were left out of matching.
func PrintSkipped(w io.Writer, skipped []statement.RowError, missing []statement.Column) {
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = string(c)
		}
		fmt.Fprintf(w, "\nStatement header is missing: %s\n", strings.Join(names, ", "))
	}
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped %d statement row(s):\n", len(skipped))
	for _, s := range skipped {
		if s.Value != "" {
			fmt.Fprintf(w, "  line %d: %s (%q)\n", s.Line, s.Reason, s.Value)
		} else {
			fmt.Fprintf(w, "  line %d: %s\n", s.Line, s.Reason)
		}
	}
}

// PrintSummary prints the report summary and both unmatched lists
func PrintSummary(w io.Writer, rep *report.Report) {
	md := rep.Metadata
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Account ID: %s\n", md.AccountID)
	fmt.Fprintf(w, "Period: %s to %s\n", md.StartDate, md.EndDate)
	fmt.Fprintf(w, "Generated: %s\n", md.GeneratedAt.Format(time.RFC3339))

	section(w, "SUMMARY")
	fmt.Fprintf(w, "  Matched Transactions: %d\n", rep.Summary.TotalMatched)
	fmt.Fprintf(w, "  Unmatched in Ledger: %d\n", rep.Summary.UnmatchedLedger)
	fmt.Fprintf(w, "  Unmatched in Bank Statement: %d\n", rep.Summary.UnmatchedStatement)
	fmt.Fprintf(w, "  Match Rate: %.1f%%\n", rep.Summary.MatchRate)

	if len(rep.UnmatchedLedgerTransactions) > 0 {
		section(w, "UNMATCHED LEDGER TRANSACTIONS")
		printEntries(w, rep.UnmatchedLedgerTransactions)
	}
	if len(rep.UnmatchedStatementTransactions) > 0 {
		section(w, "UNMATCHED BANK TRANSACTIONS")
		printEntries(w, rep.UnmatchedStatementTransactions)
	}
	fmt.Fprintln(w, "\n"+strings.Repeat("=", ruleWidth))
}

// PrintVerdict prints the closing line for a finished run.
func PrintVerdict(w io.Writer, outcome *reconcile.Outcome, minRate float64) {
	if outcome.NeedsReview() {
		fmt.Fprintf(w, "\nWARNING: Match rate below %.0f%%. Manual review recommended.\n", minRate)
		return
	}
	fmt.Fprintln(w, "\nSUCCESS: Reconciliation complete with good match rate.")
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w, "\n"+strings.Repeat("-", ruleWidth))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
}

func printEntries(w io.Writer, entries []report.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "  %s | %12s | %s\n", e.Date, e.Amount.StringFixed(2), e.Description)
	}
}

// WriteReport writes the report as indented JSON, replacing path atomically.
func WriteReport(path string, rep *report.Report) error {
	data, err := rep.JSON()
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

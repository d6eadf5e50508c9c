// Package report turns a matcher result into the reconciliation report that
// is written to disk, stored, and served by the API.
//
// Build does no I/O. Two builds over the same result and metadata produce
// byte-identical JSON apart from generated_at.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

// EngineVersion is stamped into every report so stored reports can be traced
// back to the scoring rules that produced them.
const EngineVersion = "1.0.0"

var (
	ErrMissingAccountID = errors.New("account id is required")
	ErrMissingDateRange = errors.New("start and end dates are required")
	ErrInvalidDateRange = errors.New("start date is after end date")
	ErrNilResult        = errors.New("match result is required")
)

// Meta identifies the run a report describes.
type Meta struct {
	AccountID   string
	StartDate   civil.Date
	EndDate     civil.Date
	Tolerance   decimal.Decimal
	SkippedRows int
}

// Validate checks the identifying metadata.
func (m Meta) Validate() error {
	if m.AccountID == "" {
		return ErrMissingAccountID
	}
	if m.StartDate.IsZero() || m.EndDate.IsZero() {
		return ErrMissingDateRange
	}
	if m.StartDate.After(m.EndDate) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, m.StartDate, m.EndDate)
	}
	return nil
}

// Metadata is the report header.
type Metadata struct {
	AccountID     string          `json:"account_id"`
	StartDate     civil.Date      `json:"start_date"`
	EndDate       civil.Date      `json:"end_date"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Tolerance     decimal.Decimal `json:"tolerance"`
	EngineVersion string          `json:"engine_version"`
}

// Summary holds the counts and rates of one run.
type Summary struct {
	TotalMatched         int        `json:"total_matched"`
	UnmatchedLedger      int        `json:"unmatched_ledger"`
	UnmatchedStatement   int        `json:"unmatched_statement"`
	LedgerCount          int        `json:"ledger_count"`
	StatementCount       int        `json:"statement_count"`
	MatchRate            float64    `json:"match_rate"`
	SkippedStatementRows int        `json:"skipped_statement_rows"`
	LedgerTotals         txn.Totals `json:"ledger_totals"`
	StatementTotals      txn.Totals `json:"statement_totals"`
}

// Entry is one transaction as it appears in the report.
type Entry struct {
	Source      txn.Source      `json:"source"`
	SourceID    string          `json:"source_id"`
	Date        civil.Date      `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Raw         map[string]any  `json:"raw,omitempty"`
}

// MatchedEntry is an accepted pair.
type MatchedEntry struct {
	Ledger       Entry           `json:"ledger"`
	Statement    Entry           `json:"statement"`
	Confidence   int             `json:"confidence"`
	AmountDiff   decimal.Decimal `json:"amount_diff"`
	CommonTokens []string        `json:"common_tokens"`
}

// Report is built once and not modified afterwards.
type Report struct {
	Metadata                       Metadata       `json:"metadata"`
	Summary                        Summary        `json:"summary"`
	MatchedTransactions            []MatchedEntry `json:"matched_transactions"`
	UnmatchedLedgerTransactions    []Entry        `json:"unmatched_ledger_transactions"`
	UnmatchedStatementTransactions []Entry        `json:"unmatched_statement_transactions"`
}

// JSON renders the report with two-space indentation.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// NeedsReview reports whether the match rate fell below minRate percent.
func (r *Report) NeedsReview(minRate float64) bool {
	return r.Summary.MatchRate < minRate
}

// Builder builds reports. The zero value is not usable; use NewBuilder.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a Builder stamping reports with the current UTC time.
func NewBuilder() *Builder {
	return &Builder{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build aggregates result into a Report. Metadata is validated before
// anything else is computed.
func (b *Builder) Build(result *matcher.Result, meta Meta) (*Report, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNilResult
	}

	matched := len(result.Matched)
	unmatchedLedger := len(result.UnmatchedLedger)

	ledgerSide := make([]txn.Transaction, 0, result.LedgerCount())
	statementSide := make([]txn.Transaction, 0, result.StatementCount())

	report := &Report{
		Metadata: Metadata{
			AccountID:     meta.AccountID,
			StartDate:     meta.StartDate,
			EndDate:       meta.EndDate,
			GeneratedAt:   b.now(),
			Tolerance:     meta.Tolerance,
			EngineVersion: EngineVersion,
		},
		MatchedTransactions:            make([]MatchedEntry, 0, matched),
		UnmatchedLedgerTransactions:    make([]Entry, 0, unmatchedLedger),
		UnmatchedStatementTransactions: make([]Entry, 0, len(result.UnmatchedStatement)),
	}

	for _, pair := range result.Matched {
		tokens := pair.CommonTokens
		if tokens == nil {
			tokens = []string{}
		}
		report.MatchedTransactions = append(report.MatchedTransactions, MatchedEntry{
			Ledger:       entryOf(pair.Ledger),
			Statement:    entryOf(pair.Statement),
			Confidence:   pair.Confidence,
			AmountDiff:   pair.AmountDiff,
			CommonTokens: tokens,
		})
		ledgerSide = append(ledgerSide, pair.Ledger)
		statementSide = append(statementSide, pair.Statement)
	}
	for _, tx := range result.UnmatchedLedger {
		report.UnmatchedLedgerTransactions = append(report.UnmatchedLedgerTransactions, entryOf(tx))
		ledgerSide = append(ledgerSide, tx)
	}
	for _, tx := range result.UnmatchedStatement {
		report.UnmatchedStatementTransactions = append(report.UnmatchedStatementTransactions, entryOf(tx))
		statementSide = append(statementSide, tx)
	}

	report.Summary = Summary{
		TotalMatched:         matched,
		UnmatchedLedger:      unmatchedLedger,
		UnmatchedStatement:   len(result.UnmatchedStatement),
		LedgerCount:          result.LedgerCount(),
		StatementCount:       result.StatementCount(),
		MatchRate:            MatchRate(matched, unmatchedLedger),
		SkippedStatementRows: meta.SkippedRows,
		LedgerTotals:         txn.Sum(ledgerSide),
		StatementTotals:      txn.Sum(statementSide),
	}

	return report, nil
}

// MatchRate is matched / (matched + unmatchedLedger) as a percentage, and 0
// when there is nothing on the ledger side.
func MatchRate(matched, unmatchedLedger int) float64 {
	total := matched + unmatchedLedger
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total) * 100
}

// entryOf copies Raw so later changes to the source transaction do not reach
// a built report.
func entryOf(tx txn.Transaction) Entry {
	return Entry{
		Source:      tx.Source,
		SourceID:    tx.SourceID,
		Date:        tx.Date,
		Amount:      tx.Amount,
		Description: tx.Description,
		Raw:         maps.Clone(tx.Raw),
	}
}

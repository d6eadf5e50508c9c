// Package statement turns a bank statement export into canonical
// transactions.
//
// Statements come from many banks, so header names are resolved through an
// alias table and dates are tried against a fixed list of layouts. Rows that
// cannot be normalized are skipped and reported, never guessed:
//
//	p := statement.NewParser(statement.WithLogger(logger))
//	result, err := p.ParseCSV(file)
//	// result.Transactions in file order, result.Skipped for the rest
package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

// DateLayouts are tried in order; the first one that yields a real calendar
// day wins. Day-first comes before month-first, so 03/04/2025 is 3 April.
var DateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
}

// Skip reasons reported on RowError.
const (
	ReasonMissingColumn = "missing_column"
	ReasonBadDate       = "bad_date"
	ReasonBadAmount     = "bad_amount"
	ReasonMalformedRow  = "malformed_row"
)

var (
	ErrUnparseableDate   = errors.New("date matches no known layout")
	ErrUnparseableAmount = errors.New("amount is not a number")
)

// RowError describes a statement row that was excluded from the output.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"`
	Err    error  `json:"-"`
}

func (e *RowError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Reason, e.Value, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result collects a fully consumed statement.
type Result struct {
	Transactions   []txn.Transaction
	Skipped        []RowError
	MissingColumns []Column
}

// Parser normalizes statement rows. It holds no per-parse state and is safe
// for concurrent use.
type Parser struct {
	aliases aliasTable
	logger  *slog.Logger
}

// Option configures a Parser.
type Option func(*parserOptions)

type parserOptions struct {
	extra  map[Column][]string
	logger *slog.Logger
}

// WithAliases adds header aliases on top of DefaultAliases.
func WithAliases(extra map[Column][]string) Option {
	return func(o *parserOptions) { o.extra = extra }
}

// WithLogger sets the logger used to report skipped rows.
func WithLogger(logger *slog.Logger) Option {
	return func(o *parserOptions) { o.logger = logger }
}

// NewParser creates a parser using DefaultAliases plus any extra aliases.
func NewParser(opts ...Option) *Parser {
	o := parserOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Parser{
		aliases: newAliasTable(DefaultAliases, o.extra),
		logger:  o.logger,
	}
}

// Resolve maps a header row to a Layout.
func (p *Parser) Resolve(header []string) (Layout, error) {
	return p.aliases.resolve(header)
}

// Rows lazily normalizes records laid out according to header. records
// yields each data row with its line number. Every record produces exactly
// one value: a transaction, or a RowError when the row has to be skipped.
// The header is resolved once; if it lacks required columns every row is
// reported as corrupt.
func (p *Parser) Rows(header []string, records iter.Seq2[int, []string]) iter.Seq2[txn.Transaction, *RowError] {
	layout, layoutErr := p.Resolve(header)

	return func(yield func(txn.Transaction, *RowError) bool) {
		for line, record := range records {
			if layoutErr != nil {
				if !yield(txn.Transaction{}, &RowError{Line: line, Reason: ReasonMissingColumn, Err: layoutErr}) {
					return
				}
				continue
			}

			tx, rowErr := p.normalize(layout, line, record)
			if rowErr != nil {
				p.logger.Warn("skipping statement row",
					slog.Int("line", rowErr.Line),
					slog.String("reason", rowErr.Reason),
					slog.String("value", rowErr.Value),
				)
			}
			if !yield(tx, rowErr) {
				return
			}
		}
	}
}

// ParseCSV reads a CSV statement with a header row. Row-level problems are
// collected in Result.Skipped; only an unreadable file returns an error.
func (p *Parser) ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	result := &Result{}
	if _, err := p.Resolve(header); err != nil {
		var mc *MissingColumnsError
		if errors.As(err, &mc) {
			result.MissingColumns = mc.Missing
		}
		p.logger.Warn("statement header is missing required columns; every row will be skipped",
			slog.String("error", err.Error()))
	}

	var readErr error
	records := func(yield func(int, []string) bool) {
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					result.Skipped = append(result.Skipped, RowError{Line: pe.StartLine, Reason: ReasonMalformedRow, Err: err})
					p.logger.Warn("skipping malformed statement row", slog.Int("line", pe.StartLine))
					continue
				}
				readErr = fmt.Errorf("read statement: %w", err)
				return
			}
			line, _ := reader.FieldPos(0)
			if isBlank(record) {
				continue
			}
			if !yield(line, record) {
				return
			}
		}
	}

	for tx, rowErr := range p.Rows(header, records) {
		if rowErr != nil {
			result.Skipped = append(result.Skipped, *rowErr)
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}
	if readErr != nil {
		return nil, readErr
	}

	return result, nil
}

func (p *Parser) normalize(layout Layout, line int, record []string) (txn.Transaction, *RowError) {
	dateStr := layout.value(record, ColumnDate)
	date, err := ParseDate(dateStr)
	if err != nil {
		return txn.Transaction{}, &RowError{Line: line, Reason: ReasonBadDate, Value: dateStr, Err: err}
	}

	amount, badValue, err := amountOf(layout, record)
	if err != nil {
		return txn.Transaction{}, &RowError{Line: line, Reason: ReasonBadAmount, Value: badValue, Err: err}
	}

	raw := make(map[string]any, len(layout.header))
	for i, h := range layout.header {
		if i < len(record) {
			raw[strings.TrimPrefix(h, "\ufeff")] = record[i]
		}
	}

	tx, err := txn.New(txn.SourceStatement, fmt.Sprintf("row-%d", line), date, amount,
		layout.value(record, ColumnDescription), raw)
	if err != nil {
		return txn.Transaction{}, &RowError{Line: line, Reason: ReasonBadDate, Value: dateStr, Err: err}
	}
	return tx, nil
}

// amountOf computes credit - debit, or reads the signed amount column when
// the statement has no debit/credit columns. On failure it returns the
// offending cell.
func amountOf(layout Layout, record []string) (decimal.Decimal, string, error) {
	if !layout.Has(ColumnDebit) && !layout.Has(ColumnCredit) {
		s := layout.value(record, ColumnAmount)
		amount, err := ParseAmount(s)
		return amount, s, err
	}

	debitStr := layout.value(record, ColumnDebit)
	debit, err := ParseAmount(debitStr)
	if err != nil {
		return decimal.Zero, debitStr, err
	}
	creditStr := layout.value(record, ColumnCredit)
	credit, err := ParseAmount(creditStr)
	if err != nil {
		return decimal.Zero, creditStr, err
	}

	// Taken as written: a debit printed as -50.00 becomes +50.00.
	return credit.Sub(debit), "", nil
}

// ParseDate tries DateLayouts in order.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, ErrUnparseableDate
	}
	for _, layout := range DateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, ErrUnparseableDate
}

// ParseAmount parses a money cell. A blank cell is zero. Otherwise the cell
// must hold a plain number after dropping currency symbols, a three-letter
// currency code before or after it, thousands separators and spaces;
// parentheses mean negative. Anything else, words included, is
// ErrUnparseableAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	cell := s

	s = stripCurrencyCode(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = stripCurrencyCode(strings.TrimSpace(s[1 : len(s)-1]))
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case r == ',', unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
			return -1
		}
		return r
	}, s)

	if !plainNumber.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseableAmount, cell)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseableAmount, cell)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

var (
	plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
	codePrefix  = regexp.MustCompile(`^[A-Z]{3}\s*([^A-Za-z]+)$`)
	codeSuffix  = regexp.MustCompile(`^([^A-Za-z]+?)\s*[A-Z]{3}$`)
)

// stripCurrencyCode removes an ISO-style code such as "USD" written next to
// the number. Cells that are words, or codes with nothing numeric beside
// them, are left alone for the number check to reject.
func stripCurrencyCode(s string) string {
	if m := codePrefix.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := codeSuffix.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

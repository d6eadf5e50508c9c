package statement

import (
	"errors"
	"fmt"
	"strings"
)

// Column is a logical statement field.
type Column string

const (
	ColumnDate        Column = "date"
	ColumnDescription Column = "description"
	ColumnDebit       Column = "debit"
	ColumnCredit      Column = "credit"
	ColumnAmount      Column = "amount"
	ColumnBalance     Column = "balance"
)

// DefaultAliases lists the header names accepted for each column. Matching is
// case-insensitive and ignores surrounding whitespace.
var DefaultAliases = map[Column][]string{
	ColumnDate:        {"date", "transaction date", "posted date", "posting date", "value date"},
	ColumnDescription: {"description", "memo", "details", "narrative", "payee"},
	ColumnDebit:       {"debit", "withdrawal", "withdrawals", "money out", "paid out"},
	ColumnCredit:      {"credit", "deposit", "deposits", "money in", "paid in"},
	ColumnAmount:      {"amount", "net amount"},
	ColumnBalance:     {"balance", "running balance"},
}

// ErrMissingColumns is wrapped by MissingColumnsError.
var ErrMissingColumns = errors.New("statement is missing required columns")

// MissingColumnsError names the columns a header could not supply.
type MissingColumnsError struct {
	Missing []Column
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(names, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// aliasTable maps a normalized header name to its column.
type aliasTable map[string]Column

func newAliasTable(aliases map[Column][]string, extra map[Column][]string) aliasTable {
	table := make(aliasTable)
	add := func(src map[Column][]string) {
		for col, names := range src {
			for _, name := range names {
				table[normalizeHeader(name)] = col
			}
		}
	}
	add(aliases)
	add(extra)
	return table
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// Layout records which header position serves each column.
type Layout struct {
	index  map[Column]int
	header []string
}

// Has reports whether the header supplied col.
func (l Layout) Has(col Column) bool {
	_, ok := l.index[col]
	return ok
}

func (l Layout) value(record []string, col Column) string {
	i, ok := l.index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// resolve maps header positions to columns. The first header matching a
// column wins. A date column is always required; amounts need either a
// debit/credit pair member or a single signed amount column.
func (t aliasTable) resolve(header []string) (Layout, error) {
	layout := Layout{index: make(map[Column]int), header: header}
	for i, h := range header {
		col, ok := t[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := layout.index[col]; !seen {
			layout.index[col] = i
		}
	}

	var missing []Column
	if !layout.Has(ColumnDate) {
		missing = append(missing, ColumnDate)
	}
	if !layout.Has(ColumnDebit) && !layout.Has(ColumnCredit) && !layout.Has(ColumnAmount) {
		missing = append(missing, ColumnDebit, ColumnCredit)
	}
	if len(missing) > 0 {
		return layout, &MissingColumnsError{Missing: missing}
	}
	return layout, nil
}

// Package txn defines the canonical transaction shape that both the ledger
// export and the bank statement are normalized into before matching.
//
// Amounts follow the credit-positive, debit-negative convention and dates
// carry day precision only:
//
//	t, err := txn.New(txn.SourceStatement, "row-4",
//		civil.Date{Year: 2025, Month: time.October, Day: 1},
//		decimal.RequireFromString("-50.00"),
//		"OFFICE SUPPLIES CO", row)
package txn

import (
	"errors"
	"maps"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ErrInvalidDate is returned when a transaction is built with a date that is
// not a real calendar day.
var ErrInvalidDate = errors.New("transaction date is not a valid calendar day")

// Source identifies which stream a transaction came from.
type Source string

const (
	SourceLedger    Source = "ledger"
	SourceStatement Source = "statement"
)

// Transaction is the unit exchanged between the parser, the ledger adapter,
// the matcher and the report builder. Treat it as a value: nothing in this
// module mutates a Transaction after New returns it.
type Transaction struct {
	Source      Source
	SourceID    string
	Date        civil.Date
	Amount      decimal.Decimal
	Description string
	Raw         map[string]any
}

// New builds a Transaction, cloning raw so later changes by the caller do not
// leak into the record.
func New(source Source, sourceID string, date civil.Date, amount decimal.Decimal, description string, raw map[string]any) (Transaction, error) {
	if !date.IsValid() {
		return Transaction{}, ErrInvalidDate
	}

	return Transaction{
		Source:      source,
		SourceID:    sourceID,
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		Raw:         maps.Clone(raw),
	}, nil
}

// Tokens returns the distinct lower-cased, whitespace-separated words of the
// description. An empty description yields an empty set.
func (t Transaction) Tokens() map[string]struct{} {
	fields := strings.Fields(strings.ToLower(t.Description))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// IsDebit reports whether money left the account.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// Totals sums debits and credits of a set of transactions. Debits keep their
// negative sign so Net is simply Credits + Debits.
type Totals struct {
	Debits  decimal.Decimal `json:"debits"`
	Credits decimal.Decimal `json:"credits"`
	Net     decimal.Decimal `json:"net"`
}

// Sum computes Totals over txns.
func Sum(txns []Transaction) Totals {
	var t Totals
	for _, tx := range txns {
		if tx.IsDebit() {
			t.Debits = t.Debits.Add(tx.Amount)
		} else {
			t.Credits = t.Credits.Add(tx.Amount)
		}
	}
	t.Net = t.Credits.Add(t.Debits)
	return t
}

// DateRange returns the earliest and latest dates in txns. ok is false when
// txns is empty.
func DateRange(txns []Transaction) (start, end civil.Date, ok bool) {
	if len(txns) == 0 {
		return civil.Date{}, civil.Date{}, false
	}
	start, end = txns[0].Date, txns[0].Date
	for _, tx := range txns[1:] {
		if tx.Date.Before(start) {
			start = tx.Date
		}
		if tx.Date.After(end) {
			end = tx.Date
		}
	}
	return start, end, true
}

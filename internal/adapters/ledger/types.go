package ledger

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

// Record types found in a ledger export.
const (
	TypePurchase = "Purchase"
	TypeDeposit  = "Deposit"
	TypePayment  = "Payment"
)

// Query selects the ledger records of one account over an inclusive date
// range. A zero Start or End leaves that side open.
type Query struct {
	AccountID string
	Start     civil.Date
	End       civil.Date
}

// Contains reports whether d falls inside the query range.
func (q Query) Contains(d civil.Date) bool {
	if !q.Start.IsZero() && d.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && d.After(q.End) {
		return false
	}
	return true
}

// Source supplies canonical ledger transactions for a query.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]txn.Transaction, error)
}

// Export is the file written by the ledger export tool.
type Export struct {
	AccountID        string          `json:"account_id"`
	DateRange        DateRange       `json:"date_range"`
	TransactionCount int             `json:"transaction_count,omitempty"`
	TotalDebits      decimal.Decimal `json:"total_debits"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	Transactions     []Record        `json:"transactions"`
}

// DateRange is the range an export was taken for.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Record is one exported ledger transaction. Amount is already signed:
// purchases negative, deposits and payments positive.
type Record struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Payee  string          `json:"payee"`
	Memo   string          `json:"memo"`
	Raw    map[string]any  `json:"raw,omitempty"`
}

// queryResponse is the vendor's raw query shape, accepted so an unprocessed
// API dump can be reconciled directly.
type queryResponse struct {
	QueryResponse struct {
		Purchase []json.RawMessage `json:"Purchase"`
		Deposit  []json.RawMessage `json:"Deposit"`
		Payment  []json.RawMessage `json:"Payment"`
	} `json:"QueryResponse"`
}

type entityRef struct {
	Name string `json:"name"`
}

// vendorTxn holds the fields read from a vendor Purchase, Deposit or Payment.
type vendorTxn struct {
	ID          string          `json:"Id"`
	TxnDate     string          `json:"TxnDate"`
	TotalAmt    decimal.Decimal `json:"TotalAmt"`
	PrivateNote string          `json:"PrivateNote"`
	EntityRef   *entityRef      `json:"EntityRef"`
	CustomerRef *entityRef      `json:"CustomerRef"`
}

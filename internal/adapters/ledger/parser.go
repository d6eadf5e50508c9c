package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

var (
	ErrUnknownFormat   = errors.New("unrecognized ledger export format")
	ErrAccountMismatch = errors.New("ledger export belongs to a different account")
	ErrMalformedExport = errors.New("malformed ledger export")
)

// Decode reads either an Export or a raw vendor query response. A vendor
// response is converted into an Export with signed amounts.
func Decode(r io.Reader) (*Export, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger export: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedExport, err)
	}

	switch {
	case top["QueryResponse"] != nil:
		return decodeQueryResponse(data)
	case top["transactions"] != nil:
		var export Export
		if err := json.Unmarshal(data, &export); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedExport, err)
		}
		return &export, nil
	default:
		return nil, ErrUnknownFormat
	}
}

func decodeQueryResponse(data []byte) (*Export, error) {
	var resp queryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: query response: %w", ErrMalformedExport, err)
	}

	export := &Export{}
	groups := []struct {
		typ  string
		rows []json.RawMessage
	}{
		{TypePurchase, resp.QueryResponse.Purchase},
		{TypeDeposit, resp.QueryResponse.Deposit},
		{TypePayment, resp.QueryResponse.Payment},
	}
	for _, g := range groups {
		for i, row := range g.rows {
			rec, err := convertVendorRow(g.typ, row)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %d: %w", ErrMalformedExport, g.typ, i, err)
			}
			export.Transactions = append(export.Transactions, rec)
		}
	}
	return export, nil
}

func convertVendorRow(typ string, row json.RawMessage) (Record, error) {
	var v vendorTxn
	if err := json.Unmarshal(row, &v); err != nil {
		return Record{}, err
	}

	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(row))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Record{}, err
	}

	rec := Record{
		Type: typ,
		ID:   v.ID,
		Date: v.TxnDate,
		Memo: v.PrivateNote,
		Raw:  raw,
	}

	switch typ {
	case TypePurchase:
		rec.Amount = v.TotalAmt.Neg()
		rec.Payee = refName(v.EntityRef)
	case TypeDeposit:
		rec.Amount = v.TotalAmt
		rec.Payee = "Deposit"
	case TypePayment:
		rec.Amount = v.TotalAmt
		rec.Payee = refName(v.CustomerRef)
	}
	return rec, nil
}

func refName(ref *entityRef) string {
	if ref == nil || ref.Name == "" {
		return "Unknown"
	}
	return ref.Name
}

// InRange converts the export's records that fall inside q into
// canonical transactions, sorted by date. Records with the same date keep
// their export order.
func (e *Export) InRange(q Query) ([]txn.Transaction, error) {
	if q.AccountID != "" && e.AccountID != "" && q.AccountID != e.AccountID {
		return nil, fmt.Errorf("%w: want %s, export has %s", ErrAccountMismatch, q.AccountID, e.AccountID)
	}

	out := make([]txn.Transaction, 0, len(e.Transactions))
	for i, rec := range e.Transactions {
		tx, err := rec.Canonical()
		if err != nil {
			return nil, fmt.Errorf("ledger record %d (id %q): %w", i, rec.ID, err)
		}
		if !q.Contains(tx.Date) {
			continue
		}
		out = append(out, tx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// Canonical converts a record. The memo is the description; the payee is
// used when the memo is empty.
func (r Record) Canonical() (txn.Transaction, error) {
	date, err := civil.ParseDate(r.Date)
	if err != nil {
		return txn.Transaction{}, fmt.Errorf("failed to parse date %q: %w", r.Date, err)
	}

	description := r.Memo
	if description == "" {
		description = r.Payee
	}

	raw := r.Raw
	if raw == nil {
		raw = map[string]any{
			"type":  r.Type,
			"id":    r.ID,
			"payee": r.Payee,
			"memo":  r.Memo,
		}
	}

	return txn.New(txn.SourceLedger, r.ID, date, r.Amount, description, raw)
}

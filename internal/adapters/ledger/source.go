// Package ledger converts an already-fetched ledger export into canonical
// transactions.
//
// Talking to the accounting vendor is left to the export tooling; this
// package reads what it wrote. Two shapes are accepted: the export file
//
//	{"account_id": "35", "date_range": {...}, "transactions": [{"type": "Purchase", "id": "...", ...}]}
//
// and the vendor's raw {"QueryResponse": {"Purchase": [...], "Deposit": [...]}}
// dump, where purchase totals are turned into negative amounts.
package ledger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

// FileSource reads a ledger export from disk on every Fetch.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a source backed by the export at path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.With(slog.String("source", "ledger_file")),
	}
}

// Name returns the source identifier
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Fetch loads the export and returns the records inside q.
func (s *FileSource) Fetch(ctx context.Context, q Query) ([]txn.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger export: %w", err)
	}
	defer f.Close()

	export, err := Decode(f)
	if err != nil {
		return nil, err
	}

	txns, err := export.InRange(q)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("loaded ledger export",
		slog.String("path", s.path),
		slog.Int("records", len(export.Transactions)),
		slog.Int("in_range", len(txns)))
	return txns, nil
}

// BytesSource serves an export held in memory, such as an uploaded file.
type BytesSource struct {
	data []byte
}

// NewBytesSource wraps an in-memory export.
func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: data}
}

// Name returns the source identifier
func (s *BytesSource) Name() string {
	return "upload"
}

// Fetch decodes the export and returns the records inside q.
func (s *BytesSource) Fetch(ctx context.Context, q Query) ([]txn.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	export, err := Decode(bytes.NewReader(s.data))
	if err != nil {
		return nil, err
	}
	return export.InRange(q)
}

// StaticSource returns a fixed set of transactions, filtered by date. Useful
// when the caller already holds canonical records.
type StaticSource struct {
	txns []txn.Transaction
}

// NewStaticSource wraps txns.
func NewStaticSource(txns []txn.Transaction) *StaticSource {
	return &StaticSource{txns: txns}
}

// Name returns the source identifier
func (s *StaticSource) Name() string {
	return "static"
}

// Fetch returns the wrapped transactions inside q, in their original order.
func (s *StaticSource) Fetch(ctx context.Context, q Query) ([]txn.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]txn.Transaction, 0, len(s.txns))
	for _, tx := range s.txns {
		if q.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out, nil
}

package reconcile

import (
	"context"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/report"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

func (s *Service) persist(ctx context.Context, outcome *Outcome) error {
	run, unmatched, err := ToRun(outcome.RunID, outcome.Status, outcome.Report)
	if err != nil {
		return err
	}
	return s.store.SaveRun(ctx, run, unmatched)
}

// ToRun flattens a report into its stored form.
func ToRun(runID, status string, rep *report.Report) (*storage.ReconciliationRun, []storage.UnmatchedTransaction, error) {
	body, err := rep.JSON()
	if err != nil {
		return nil, nil, err
	}

	sum := rep.Summary
	run := &storage.ReconciliationRun{
		ID:                 runID,
		AccountID:          rep.Metadata.AccountID,
		StartDate:          rep.Metadata.StartDate.String(),
		EndDate:            rep.Metadata.EndDate.String(),
		Tolerance:          rep.Metadata.Tolerance.String(),
		LedgerCount:        sum.LedgerCount,
		StatementCount:     sum.StatementCount,
		TotalMatched:       sum.TotalMatched,
		UnmatchedLedger:    sum.UnmatchedLedger,
		UnmatchedStatement: sum.UnmatchedStatement,
		SkippedRows:        sum.SkippedStatementRows,
		MatchRate:          sum.MatchRate,
		Status:             status,
		GeneratedAt:        rep.Metadata.GeneratedAt,
		ReportJSON:         string(body),
	}

	unmatched := make([]storage.UnmatchedTransaction, 0, sum.UnmatchedLedger+sum.UnmatchedStatement)
	add := func(side string, entries []report.Entry) {
		for _, e := range entries {
			unmatched = append(unmatched, storage.UnmatchedTransaction{
				RunID:       runID,
				Side:        side,
				SourceID:    e.SourceID,
				Date:        e.Date.String(),
				Amount:      e.Amount.String(),
				Description: e.Description,
			})
		}
	}
	add(storage.SideLedger, rep.UnmatchedLedgerTransactions)
	add(storage.SideStatement, rep.UnmatchedStatementTransactions)

	return run, unmatched, nil
}

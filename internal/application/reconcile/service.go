// Package reconcile runs one reconciliation end to end: parse the bank
// statement, fetch the ledger side, match, build the report and store it.
//
// When the request carries a date range, statement parsing and the ledger
// fetch run concurrently. Without one, the range is taken from the earliest
// and latest statement dates, so the fetch has to wait for the parse.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/ledger"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/report"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/statement"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

var (
	// ErrInvalidRequest wraps every request validation failure.
	ErrInvalidRequest = errors.New("invalid reconciliation request")
	// ErrNoUsableRows means the range had to come from the statement but
	// every row was skipped. It is also an ErrInvalidRequest.
	ErrNoUsableRows = errors.New("statement has no usable rows")
)

// Request holds parameters for one reconciliation.
type Request struct {
	AccountID string
	Statement io.Reader     // CSV with a header row
	Ledger    ledger.Source // ledger side for the account and range

	// Optional. Both or neither; derived from the statement when zero.
	StartDate civil.Date
	EndDate   civil.Date

	// Optional overrides of the service defaults.
	Tolerance    *decimal.Decimal
	MinMatchRate *float64
}

// Outcome is the result of a successful run.
type Outcome struct {
	RunID          string
	Report         *report.Report
	Skipped        []statement.RowError
	MissingColumns []statement.Column
	Status         string // storage.StatusBalanced or storage.StatusNeedsReview

	// Saved is false when no store is configured or saving failed; the
	// report itself is still valid.
	Saved      bool
	PersistErr error
}

// NeedsReview reports whether the run fell below its minimum match rate.
func (o *Outcome) NeedsReview() bool {
	return o.Status == storage.StatusNeedsReview
}

// Options holds the service defaults.
type Options struct {
	Matcher      matcher.Config
	MinMatchRate float64
	ExtraAliases map[statement.Column][]string
}

// DefaultOptions returns the default matcher scoring and a 95% review bar.
func DefaultOptions() Options {
	return Options{
		Matcher:      matcher.DefaultConfig(),
		MinMatchRate: config.DefaultMinMatchRate,
	}
}

// OptionsFromConfig maps application config onto service options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	if cfg == nil {
		return opts, nil
	}

	tol, err := cfg.Reconciliation.ToleranceDecimal()
	if err != nil {
		return Options{}, err
	}
	opts.Matcher.AmountTolerance = tol
	if cfg.Reconciliation.Threshold > 0 {
		opts.Matcher.Threshold = cfg.Reconciliation.Threshold
	}
	if cfg.Reconciliation.MinMatchRate > 0 {
		opts.MinMatchRate = cfg.Reconciliation.MinMatchRate
	}
	if len(cfg.Statement.ExtraAliases) > 0 {
		opts.ExtraAliases = make(map[statement.Column][]string, len(cfg.Statement.ExtraAliases))
		for col, names := range cfg.Statement.ExtraAliases {
			opts.ExtraAliases[statement.Column(col)] = names
		}
	}

	if err := opts.Matcher.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Service runs reconciliations. It holds no per-run state, so one Service
// can serve concurrent runs.
type Service struct {
	opts    Options
	store   storage.Repository
	logger  *slog.Logger
	parser  *statement.Parser
	builder *report.Builder
	newID   func() string
}

// NewService creates a new reconciliation service. store may be nil, in
// which case runs are not persisted.
func NewService(opts Options, store storage.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		opts:    opts,
		store:   store,
		logger:  logger,
		parser:  statement.NewParser(statement.WithAliases(opts.ExtraAliases), statement.WithLogger(logger)),
		builder: report.NewBuilder(),
		newID:   uuid.NewString,
	}
}

// WithClock returns a copy of the service whose reports use now.
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.builder = s.builder.WithClock(now)
	return &c
}

// Options returns the service defaults.
func (s *Service) Options() Options {
	return s.opts
}

// Run executes one reconciliation. Request problems are reported before any
// input is read.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	cfg, minRate, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	m, err := matcher.NewMatcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	runID := s.newID()
	logger := s.logger.With(slog.String("run_id", runID), slog.String("account", req.AccountID))

	var (
		parsed    *statement.Result
		ledgerTxs []txn.Transaction
		start     = req.StartDate
		end       = req.EndDate
	)

	if start.IsZero() {
		parsed, err = s.parseStatement(req.Statement)
		if err != nil {
			return nil, err
		}
		var ok bool
		start, end, ok = txn.DateRange(parsed.Transactions)
		if !ok {
			return nil, fmt.Errorf("%w: no date range given: %w", ErrInvalidRequest, ErrNoUsableRows)
		}
		logger.Info("derived date range from statement",
			slog.String("start", start.String()),
			slog.String("end", end.String()))

		ledgerTxs, err = s.fetchLedger(ctx, req, start, end)
		if err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var perr error
			parsed, perr = s.parseStatement(req.Statement)
			return perr
		})
		g.Go(func() error {
			var ferr error
			ledgerTxs, ferr = s.fetchLedger(gctx, req, start, end)
			return ferr
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	logger.Info("inputs loaded",
		slog.Int("statement_rows", len(parsed.Transactions)),
		slog.Int("skipped_rows", len(parsed.Skipped)),
		slog.Int("ledger_records", len(ledgerTxs)))

	result, err := m.Match(ledgerTxs, parsed.Transactions)
	if err != nil {
		return nil, err
	}

	rep, err := s.builder.Build(result, report.Meta{
		AccountID:   req.AccountID,
		StartDate:   start,
		EndDate:     end,
		Tolerance:   cfg.AmountTolerance,
		SkippedRows: len(parsed.Skipped),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	outcome := &Outcome{
		RunID:          runID,
		Report:         rep,
		Skipped:        parsed.Skipped,
		MissingColumns: parsed.MissingColumns,
		Status:         storage.StatusBalanced,
	}
	if rep.NeedsReview(minRate) {
		outcome.Status = storage.StatusNeedsReview
	}

	logger.Info("reconciliation complete",
		slog.Int("matched", rep.Summary.TotalMatched),
		slog.Int("unmatched_ledger", rep.Summary.UnmatchedLedger),
		slog.Int("unmatched_statement", rep.Summary.UnmatchedStatement),
		slog.String("match_rate", fmt.Sprintf("%.1f%%", rep.Summary.MatchRate)),
		slog.String("status", outcome.Status))

	if s.store != nil {
		if err := s.persist(ctx, outcome); err != nil {
			outcome.PersistErr = err
			logger.Error("failed to save reconciliation run", slog.String("error", err.Error()))
		} else {
			outcome.Saved = true
		}
	}

	return outcome, nil
}

func (s *Service) validate(req Request) (matcher.Config, float64, error) {
	cfg := s.opts.Matcher
	minRate := s.opts.MinMatchRate

	if req.AccountID == "" {
		return cfg, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, report.ErrMissingAccountID)
	}
	if req.Statement == nil {
		return cfg, 0, fmt.Errorf("%w: statement is required", ErrInvalidRequest)
	}
	if req.Ledger == nil {
		return cfg, 0, fmt.Errorf("%w: ledger source is required", ErrInvalidRequest)
	}
	if req.StartDate.IsZero() != req.EndDate.IsZero() {
		return cfg, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, report.ErrMissingDateRange)
	}
	if !req.StartDate.IsZero() {
		if !req.StartDate.IsValid() || !req.EndDate.IsValid() {
			return cfg, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, txn.ErrInvalidDate)
		}
		if req.StartDate.After(req.EndDate) {
			return cfg, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, report.ErrInvalidDateRange)
		}
	}
	if req.Tolerance != nil {
		cfg.AmountTolerance = *req.Tolerance
	}
	if err := cfg.Validate(); err != nil {
		return cfg, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.MinMatchRate != nil {
		minRate = *req.MinMatchRate
	}
	if minRate < 0 || minRate > 100 {
		return cfg, 0, fmt.Errorf("%w: min match rate must be between 0 and 100", ErrInvalidRequest)
	}
	return cfg, minRate, nil
}

func (s *Service) parseStatement(r io.Reader) (*statement.Result, error) {
	parsed, err := s.parser.ParseCSV(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}
	return parsed, nil
}

func (s *Service) fetchLedger(ctx context.Context, req Request, start, end civil.Date) ([]txn.Transaction, error) {
	txns, err := req.Ledger.Fetch(ctx, ledger.Query{AccountID: req.AccountID, Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger from %s: %w", req.Ledger.Name(), err)
	}
	return txns, nil
}

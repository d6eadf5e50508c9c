package matcher

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

var (
	// ErrNegativeTolerance is returned before any matching work when the
	// amount tolerance is below zero.
	ErrNegativeTolerance = errors.New("amount tolerance cannot be negative")
	// ErrThresholdTooLow is returned when a date and amount agreement alone
	// would not be required to reach the threshold.
	ErrThresholdTooLow = errors.New("match threshold is below the date and amount weights")
	ErrNegativeWeight  = errors.New("match weights cannot be negative")
)

// Config holds matcher configuration
type Config struct {
	AmountTolerance decimal.Decimal // Default: 0.01 (1 cent)

	// Points awarded per piece of evidence. A candidate is accepted only
	// when its total reaches Threshold.
	DateWeight   int // exact calendar day
	AmountWeight int // |ledger - statement| <= AmountTolerance
	TokenWeight  int // per shared description word
	Threshold    int
}

// DefaultConfig returns the scoring used for bank reconciliation: date and
// amount together (40+50) are the floor, shared words only add on top.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: decimal.NewFromFloat(0.01),
		DateWeight:      40,
		AmountWeight:    50,
		TokenWeight:     10,
		Threshold:       90,
	}
}

// Validate rejects configurations that cannot be matched against. The
// threshold may be raised to also demand shared words, never lowered below
// DateWeight+AmountWeight.
func (c Config) Validate() error {
	if c.AmountTolerance.IsNegative() {
		return ErrNegativeTolerance
	}
	if c.DateWeight < 0 || c.AmountWeight < 0 || c.TokenWeight < 0 {
		return ErrNegativeWeight
	}
	if c.Threshold < c.DateWeight+c.AmountWeight {
		return fmt.Errorf("%w: %d < %d", ErrThresholdTooLow, c.Threshold, c.DateWeight+c.AmountWeight)
	}
	return nil
}

// Candidate is a scored (ledger, statement) pairing considered during one
// Match call.
type Candidate struct {
	LedgerIndex    int
	StatementIndex int
	Score          int
}

// Pair is an accepted match.
type Pair struct {
	Ledger       txn.Transaction `json:"ledger"`
	Statement    txn.Transaction `json:"statement"`
	Confidence   int             `json:"confidence"`
	AmountDiff   decimal.Decimal `json:"amount_diff"`
	CommonTokens []string        `json:"common_tokens,omitempty"`
}

// Result partitions every input record into exactly one of Matched,
// UnmatchedLedger or UnmatchedStatement.
type Result struct {
	Matched            []Pair
	UnmatchedLedger    []txn.Transaction
	UnmatchedStatement []txn.Transaction
}

// LedgerCount is the number of ledger records the result was built from.
func (r *Result) LedgerCount() int {
	return len(r.Matched) + len(r.UnmatchedLedger)
}

// StatementCount is the number of statement records the result was built from.
func (r *Result) StatementCount() int {
	return len(r.Matched) + len(r.UnmatchedStatement)
}

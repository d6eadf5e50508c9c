// Package matcher pairs ledger transactions with bank statement
// transactions.
//
// Matching is greedy and follows ledger order:
//   - a statement record is a candidate only if it is unconsumed, falls on
//     the same calendar day and its amount is within tolerance
//   - candidates are scored +40 for the day, +50 for the amount and +10 for
//     each description word the two share
//   - the highest score wins, the first one seen on ties
//   - the winner is accepted at the threshold (90) or more, and is never reused
//
// Shared words only rank candidates; they never stand in for a missing date
// or amount agreement.
//
// This is not a globally optimal assignment. When two ledger records compete
// for one statement record, the earlier ledger record gets it.
//
// Example usage:
//
//	m, err := matcher.NewMatcher(matcher.DefaultConfig())
//	result, err := m.Match(ledgerTxns, statementTxns)
//	for _, pair := range result.Matched {
//		// pair.Confidence >= 90
//	}
package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

// Matcher matches ledger records with statement records
type Matcher struct {
	config Config
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{
		config: config,
	}, nil
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// Match runs the default scoring with the given tolerance.
func Match(ledger, statement []txn.Transaction, tolerance decimal.Decimal) (*Result, error) {
	cfg := DefaultConfig()
	cfg.AmountTolerance = tolerance
	m, err := NewMatcher(cfg)
	if err != nil {
		return nil, err
	}
	return m.Match(ledger, statement)
}

// Match pairs ledger with statement. Inputs are not modified; the returned
// Result holds copies of the records. Empty inputs are legal.
func (m *Matcher) Match(ledger, statement []txn.Transaction) (*Result, error) {
	result := &Result{
		Matched:            make([]Pair, 0),
		UnmatchedLedger:    make([]txn.Transaction, 0),
		UnmatchedStatement: make([]txn.Transaction, 0),
	}

	consumed := make([]bool, len(statement))
	statementTokens := make([]map[string]struct{}, len(statement))
	for i, st := range statement {
		statementTokens[i] = st.Tokens()
	}

	for li, led := range ledger {
		best, found := m.bestCandidate(li, led, statement, statementTokens, consumed)
		if !found || best.Score < m.config.Threshold {
			result.UnmatchedLedger = append(result.UnmatchedLedger, led)
			continue
		}

		consumed[best.StatementIndex] = true
		st := statement[best.StatementIndex]
		result.Matched = append(result.Matched, Pair{
			Ledger:       led,
			Statement:    st,
			Confidence:   best.Score,
			AmountDiff:   led.Amount.Sub(st.Amount).Abs(),
			CommonTokens: commonTokens(led.Tokens(), statementTokens[best.StatementIndex]),
		})
	}

	for i, st := range statement {
		if !consumed[i] {
			result.UnmatchedStatement = append(result.UnmatchedStatement, st)
		}
	}

	return result, nil
}

// bestCandidate scores every eligible statement record against led and
// returns the strictly highest; on ties the earliest statement record stays.
func (m *Matcher) bestCandidate(
	li int,
	led txn.Transaction,
	statement []txn.Transaction,
	statementTokens []map[string]struct{},
	consumed []bool,
) (Candidate, bool) {
	ledgerTokens := led.Tokens()

	var best Candidate
	found := false
	for si, st := range statement {
		if consumed[si] || !m.eligible(led, st) {
			continue
		}

		score := m.score(led, st, ledgerTokens, statementTokens[si])
		if !found || score > best.Score {
			best = Candidate{LedgerIndex: li, StatementIndex: si, Score: score}
			found = true
		}
	}
	return best, found
}

// Score returns the points a ledger/statement pair earns under the default
// weights. A pair that fails the date or amount check can still score, but
// Match never pairs it.
func Score(ledger, statement txn.Transaction, tolerance decimal.Decimal) int {
	cfg := DefaultConfig()
	cfg.AmountTolerance = tolerance
	m := &Matcher{config: cfg}
	return m.score(ledger, statement, ledger.Tokens(), statement.Tokens())
}

// eligible reports whether st may be paired with led at all: same day and
// an amount difference no larger than the tolerance.
func (m *Matcher) eligible(led, st txn.Transaction) bool {
	return led.Date == st.Date && m.amountWithin(led, st)
}

// amountWithin is inclusive: a difference exactly equal to the tolerance
// still counts.
func (m *Matcher) amountWithin(led, st txn.Transaction) bool {
	return led.Amount.Sub(st.Amount).Abs().LessThanOrEqual(m.config.AmountTolerance)
}

func (m *Matcher) score(led, st txn.Transaction, ledgerTokens, statementTokens map[string]struct{}) int {
	score := 0

	if led.Date == st.Date {
		score += m.config.DateWeight
	}
	if m.amountWithin(led, st) {
		score += m.config.AmountWeight
	}

	score += m.config.TokenWeight * countCommon(ledgerTokens, statementTokens)

	return score
}

func countCommon(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}

func commonTokens(a, b map[string]struct{}) []string {
	var out []string
	for tok := range a {
		if _, ok := b[tok]; ok {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DefaultOutputPath is where the report is written when -output is not set.
const DefaultOutputPath = "reconciliation_report.json"

// ErrMissingFlag is returned when a required flag is empty.
var ErrMissingFlag = errors.New("required flag not set")

// ReconcileFlags are the flags of the reconcile command.
// Optional values stay empty so config defaults apply.
type ReconcileFlags struct {
	ConfigFile    string
	AccountID     string
	StatementFile string
	LedgerFile    string
	StartDate     string
	EndDate       string
	Output        string
	Tolerance     string
	MinMatchRate  float64 // negative = use config
	DBPath        string
	NoSave        bool
	Verbose       bool
}

// ParseReconcileFlags parses reconcile flags from args (without the program name).
func ParseReconcileFlags(args []string, errOut io.Writer) (ReconcileFlags, error) {
	var flags ReconcileFlags
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	fs.StringVar(&flags.AccountID, "account-id", "", "Ledger bank account ID (required)")
	fs.StringVar(&flags.StatementFile, "statement-file", "", "Bank statement CSV (required)")
	fs.StringVar(&flags.LedgerFile, "ledger-file", "", "Ledger export JSON (required)")
	fs.StringVar(&flags.StartDate, "start-date", "", "Start date YYYY-MM-DD (default: earliest statement date)")
	fs.StringVar(&flags.EndDate, "end-date", "", "End date YYYY-MM-DD (default: latest statement date)")
	fs.StringVar(&flags.Output, "output", DefaultOutputPath, "Report output path")
	fs.StringVar(&flags.Tolerance, "tolerance", "", "Amount tolerance, e.g. 0.01 (default from config)")
	fs.Float64Var(&flags.MinMatchRate, "min-match-rate", -1, "Match rate percent below which review is needed (default from config)")
	fs.StringVar(&flags.DBPath, "db", "", "SQLite database path (default from config)")
	fs.BoolVar(&flags.NoSave, "no-save", false, "Do not store the run in the database")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return flags, err
	}
	return flags, flags.Validate()
}

// Validate checks required flags and value formats.
func (f ReconcileFlags) Validate() error {
	var missing []string
	if f.AccountID == "" {
		missing = append(missing, "-account-id")
	}
	if f.StatementFile == "" {
		missing = append(missing, "-statement-file")
	}
	if f.LedgerFile == "" {
		missing = append(missing, "-ledger-file")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFlag, strings.Join(missing, ", "))
	}
	if _, _, err := f.Dates(); err != nil {
		return err
	}
	if _, err := f.ToleranceOverride(); err != nil {
		return err
	}
	return nil
}

// Dates parses -start-date and -end-date. Empty values give zero dates.
func (f ReconcileFlags) Dates() (civil.Date, civil.Date, error) {
	var start, end civil.Date
	var err error
	if f.StartDate != "" {
		if start, err = civil.ParseDate(f.StartDate); err != nil {
			return start, end, fmt.Errorf("invalid -start-date %q: %w", f.StartDate, err)
		}
	}
	if f.EndDate != "" {
		if end, err = civil.ParseDate(f.EndDate); err != nil {
			return start, end, fmt.Errorf("invalid -end-date %q: %w", f.EndDate, err)
		}
	}
	return start, end, nil
}

// ToleranceOverride returns the -tolerance value, or nil when unset.
func (f ReconcileFlags) ToleranceOverride() (*decimal.Decimal, error) {
	if f.Tolerance == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(f.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("invalid -tolerance %q: %w", f.Tolerance, err)
	}
	return &d, nil
}

// MinMatchRateOverride returns the -min-match-rate value, or nil when unset.
func (f ReconcileFlags) MinMatchRateOverride() *float64 {
	if f.MinMatchRate < 0 {
		return nil
	}
	rate := f.MinMatchRate
	return &rate
}

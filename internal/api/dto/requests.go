package dto

// Multipart form fields accepted by POST /api/reconciliations.
const (
	FieldAccountID    = "account_id"
	FieldStartDate    = "start_date"
	FieldEndDate      = "end_date"
	FieldTolerance    = "tolerance"
	FieldMinMatchRate = "min_match_rate"
	FieldStatement    = "statement"
	FieldLedger       = "ledger"
)

// MaxUploadBytes caps the combined size of the statement and ledger files.
const MaxUploadBytes = 32 << 20

// RunListParams represents query parameters for listing reconciliation runs.
type RunListParams struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// DefaultRunListParams returns default values for run list params.
func DefaultRunListParams() RunListParams {
	return RunListParams{
		Limit:  20,
		Offset: 0,
	}
}

package dto

// APIError is the body of every non-2xx response. Field names the form field
// or query parameter at fault, when there is one.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Error codes. The last three describe uploads that reached the
// reconciliation engine but could not be used.
const (
	ErrCodeNotFound        = "not_found"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeInternalError   = "internal_error"
	ErrCodeValidation      = "validation_error"
	ErrCodeLedgerFormat    = "ledger_format"
	ErrCodeAccountMismatch = "account_mismatch"
	ErrCodeStatementFormat = "statement_format"
)

func (e APIError) Error() string {
	if e.Field != "" {
		return e.Code + " (" + e.Field + "): " + e.Message
	}
	return e.Code + ": " + e.Message
}

// NotFoundError reports a missing resource, e.g. "reconciliation run".
func NotFoundError(resource string) APIError {
	return APIError{Code: ErrCodeNotFound, Message: resource + " not found"}
}

// BadRequestError reports a request the server could not read at all.
func BadRequestError(message string) APIError {
	return APIError{Code: ErrCodeBadRequest, Message: message}
}

// InternalError hides the cause; it is logged server-side instead.
func InternalError() APIError {
	return APIError{Code: ErrCodeInternalError, Message: "an internal error occurred"}
}

// ValidationError reports a well-formed request with unacceptable values.
func ValidationError(message string) APIError {
	return APIError{Code: ErrCodeValidation, Message: message}
}

// FieldError is a ValidationError tied to one form field or query parameter.
func FieldError(field, message string) APIError {
	return APIError{Code: ErrCodeValidation, Message: message, Field: field}
}

// LedgerFormatError reports a ledger export that could not be decoded.
func LedgerFormatError(message string) APIError {
	return APIError{Code: ErrCodeLedgerFormat, Message: message, Field: FieldLedger}
}

// AccountMismatchError reports a ledger export taken for another account.
func AccountMismatchError(message string) APIError {
	return APIError{Code: ErrCodeAccountMismatch, Message: message, Field: FieldLedger}
}

// StatementFormatError reports a statement that yielded nothing usable.
func StatementFormatError(message string) APIError {
	return APIError{Code: ErrCodeStatementFormat, Message: message, Field: FieldStatement}
}

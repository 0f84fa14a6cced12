package extraction

import "fmt"

// ErrorCode identifies a specific extraction failure class. Codes surface
// verbatim in API error payloads.
type ErrorCode string

const (
	ErrEncryptedPDF        ErrorCode = "ENCRYPTED_PDF"
	ErrIncorrectPassword   ErrorCode = "INCORRECT_PASSWORD"
	ErrScannedDocument     ErrorCode = "SCANNED_DOCUMENT"
	ErrInvalidDocument     ErrorCode = "INVALID_DOCUMENT"
	ErrModelUnavailable    ErrorCode = "MODEL_UNAVAILABLE"
	ErrModelRateLimited    ErrorCode = "MODEL_RATE_LIMITED"
	ErrAllModelsFailed     ErrorCode = "ALL_MODELS_FAILED"
	ErrNoTransactionsFound ErrorCode = "NO_TRANSACTIONS_FOUND"
)

// Error is a structured error for extraction failures. Message holds the
// human-readable detail returned to clients.
type Error struct {
	Code      ErrorCode
	Message   string
	Method    string // e.g. "pdf", "llm", "csv"
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a retry with the same input could succeed.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

func newError(code ErrorCode, message, method string, retryable bool, cause error) *Error {
	return &Error{Code: code, Message: message, Method: method, Retryable: retryable, Cause: cause}
}

// Detail strings match the analyzer's long-standing client contract.
const (
	detailEncryptedPDF      = "PDF is password protected. Please provide the password."
	detailIncorrectPassword = "Incorrect Password"
	detailScannedDocument   = "Could not extract text from PDF. It might be scanned/image-based."
	detailNoTransactions    = "No transactions found in the statement."
)

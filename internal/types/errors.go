package types

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of failure a ledger operation returned
type ErrorCode string

const (
	// Caller errors
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"

	// Ledger state errors
	ErrInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrAlreadyClaimed    ErrorCode = "ALREADY_CLAIMED"
	ErrConflict          ErrorCode = "CONFLICT"

	// System errors
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrInternal         ErrorCode = "INTERNAL_ERROR"
)

// LedgerError is the typed error every core operation returns
type LedgerError struct {
	Code    ErrorCode
	Message string
	Err     error // Underlying error, if any
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewError creates a new LedgerError
func NewError(code ErrorCode, message string) *LedgerError {
	return &LedgerError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new LedgerError with a formatted message
func Errorf(code ErrorCode, format string, args ...any) *LedgerError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError wraps an existing error in a LedgerError
func WrapError(code ErrorCode, message string, err error) *LedgerError {
	return &LedgerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the outermost LedgerError in err's chain,
// or ErrInternal when err carries none.
func CodeOf(err error) ErrorCode {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr.Code
	}
	return ErrInternal
}

// IsCode checks if an error is a LedgerError with a specific code
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

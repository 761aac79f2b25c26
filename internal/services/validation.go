package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/dropvault/backend/internal/types"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    types.ErrorCode   `json:"code,omitempty"`    // Machine-readable error kind
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// validate runs struct validation and wraps failures as VALIDATION_ERROR,
// keeping the field errors reachable for the response details.
func (vh *ValidationHelper) validate(s any) error {
	if err := vh.validator.Struct(s); err != nil {
		return types.WrapError(types.ErrValidation, "invalid request", err)
	}
	return nil
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	writeErrorBody(w, statusCode, ErrorResponse{Error: message, Details: validationDetails(validationErr)})
}

// WriteError maps a ledger error onto its HTTP status and writes the body.
// Internal failures are logged and reported without their cause.
func WriteError(w http.ResponseWriter, err error) {
	code := types.CodeOf(err)
	status := StatusFor(code)

	message := "Internal server error"
	var ledgerErr *types.LedgerError
	if status != http.StatusInternalServerError && errors.As(err, &ledgerErr) {
		message = ledgerErr.Message
	} else if status == http.StatusInternalServerError {
		log.Printf("[API] internal error: %v", err)
	}

	writeErrorBody(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: validationDetails(err),
	})
}

// StatusFor returns the HTTP status for an error code
func StatusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrValidation:
		return http.StatusBadRequest
	case types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrForbidden:
		return http.StatusForbidden
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrConflict, types.ErrAlreadyClaimed:
		return http.StatusConflict
	case types.ErrInsufficientFunds:
		return http.StatusUnprocessableEntity
	case types.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validationDetails(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if err == nil || !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		details[fieldErr.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fieldErr.Tag())
	}
	return details
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

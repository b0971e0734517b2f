package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Lookup errors
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeInvalidIndex    ErrorCode = "INVALID_INDEX"
	ErrCodeAlreadyInactive ErrorCode = "ALREADY_INACTIVE"

	// Capacity errors
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// Precondition errors
	ErrCodeNotSynced           ErrorCode = "NOT_SYNCED"
	ErrCodeNoCoordinationStore ErrorCode = "NO_COORDINATION_STORE"
	ErrCodeNoCurrentPage       ErrorCode = "NO_CURRENT_PAGE"
	ErrCodeNoHistory           ErrorCode = "NO_HISTORY"

	// Collaborator errors
	ErrCodeRenderError      ErrorCode = "RENDER_ERROR"
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeDegraded         ErrorCode = "DEGRADED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// TabError represents a structured error with context
type TabError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *TabError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *TabError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *TabError) WithDetail(key string, value interface{}) *TabError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *TabError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new TabError
func New(code ErrorCode, message string) *TabError {
	return &TabError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a TabError
func Wrap(err error, code ErrorCode, message string) *TabError {
	return &TabError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific TabError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	tabErr, ok := err.(*TabError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return tabErr.Code
}

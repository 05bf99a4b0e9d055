package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Error codes attached to verdict logs and API error payloads
const (
	ErrCodeSchema         = "SCHEMA_ERROR"
	ErrCodeMalformedInput = "MALFORMED_INPUT"
	ErrCodeStructural     = "STRUCTURAL_ERROR"
	ErrCodeStoreVersion   = "STORE_VERSION_ERROR"
	ErrCodeLookupTimeout  = "LOOKUP_TIMEOUT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// APIError is the error body returned by the HTTP surface.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// SchemaError reports a missing or malformed required structure in one upstream
// case document. It aborts processing of that case only.
type SchemaError struct {
	CaseID string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.CaseID == "" {
		return fmt.Sprintf("schema error: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema error in case %s: field %q: %s", e.CaseID, e.Field, e.Reason)
}

// MalformedInputError reports a payload that is not a JSON object.
type MalformedInputError struct {
	Source string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s: %s", e.Source, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// StructuralError reports a document whose shape does not match the traversal
// directive applied to it.
type StructuralError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error at %s: expected %s, found %s", e.Path, e.Expected, e.Actual)
}

// MissingVersionError is returned when an override store carries no version.
type MissingVersionError struct {
	Path string
}

func (e *MissingVersionError) Error() string {
	return fmt.Sprintf("override store %s declares no version", e.Path)
}

// StaleStoreError is returned when an override store is older than this build understands.
type StaleStoreError struct {
	Path     string
	Found    int
	Required int
}

func (e *StaleStoreError) Error() string {
	return fmt.Sprintf("override store %s has version %d, at least %d required", e.Path, e.Found, e.Required)
}

// LookupTimeoutError is returned by external collaborators that stayed
// unreachable after all retry attempts.
type LookupTimeoutError struct {
	Service  string
	Key      string
	Attempts int
	Err      error
}

func (e *LookupTimeoutError) Error() string {
	return fmt.Sprintf("%s lookup for %q failed after %d attempts: %v", e.Service, e.Key, e.Attempts, e.Err)
}

func (e *LookupTimeoutError) Unwrap() error { return e.Err }

// ErrorCode maps an error onto one of the codes above.
func ErrorCode(err error) string {
	var (
		schemaErr     *SchemaError
		malformedErr  *MalformedInputError
		structuralErr *StructuralError
		missingErr    *MissingVersionError
		staleErr      *StaleStoreError
		lookupErr     *LookupTimeoutError
		validationErr *ValidationError
	)
	switch {
	case errors.As(err, &schemaErr):
		return ErrCodeSchema
	case errors.As(err, &malformedErr):
		return ErrCodeMalformedInput
	case errors.As(err, &structuralErr):
		return ErrCodeStructural
	case errors.As(err, &missingErr), errors.As(err, &staleErr):
		return ErrCodeStoreVersion
	case errors.As(err, &lookupErr):
		return ErrCodeLookupTimeout
	case errors.As(err, &validationErr):
		return ErrCodeValidation
	}
	return ErrCodeInternal
}

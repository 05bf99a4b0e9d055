package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	err := NewAPIError(ErrCodeValidation, "invalid override", "cleaned list is empty")

	if err.Code != ErrCodeValidation {
		t.Errorf("Expected code %s, got %s", ErrCodeValidation, err.Code)
	}
	if time.Since(err.Timestamp) > time.Minute {
		t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
	}
	if err.Error() != "VALIDATION_ERROR: invalid override" {
		t.Errorf("unexpected error string %s", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "accession",
			message: "Invalid format",
			value:   "BRCA1",
		},
		{
			name:    "Integer validation error",
			field:   "version",
			message: "Must be positive",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}
			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"schema", &SchemaError{CaseID: "1", Field: "case_id", Reason: "missing"}, ErrCodeSchema},
		{"wrapped schema", fmt.Errorf("loading case: %w", &SchemaError{Field: "case_id"}), ErrCodeSchema},
		{"malformed", &MalformedInputError{Source: "x.json", Reason: "not an object"}, ErrCodeMalformedInput},
		{"structural", &StructuralError{Path: "genomic_entries", Expected: "array", Actual: "object"}, ErrCodeStructural},
		{"missing version", &MissingVersionError{Path: "store.json"}, ErrCodeStoreVersion},
		{"stale", &StaleStoreError{Path: "store.json", Found: 1, Required: 2}, ErrCodeStoreVersion},
		{"lookup", &LookupTimeoutError{Service: "mutalyzer", Key: "rs1", Attempts: 3}, ErrCodeLookupTimeout},
		{"validation", NewValidationError("f", "m", nil), ErrCodeValidation},
		{"other", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLookupTimeoutErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &LookupTimeoutError{Service: "mutalyzer", Key: "rs1", Attempts: 5, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected LookupTimeoutError to unwrap to its cause")
	}
	if err.Error() != `mutalyzer lookup for "rs1" failed after 5 attempts: connection refused` {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{CaseID: "42", Field: "case_id", Reason: "missing"}
	if err.Error() != `schema error in case 42: field "case_id": missing` {
		t.Errorf("unexpected message %q", err.Error())
	}
	err.CaseID = ""
	if err.Error() != `schema error: field "case_id": missing` {
		t.Errorf("unexpected message %q", err.Error())
	}
}

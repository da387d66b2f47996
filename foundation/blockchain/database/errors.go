package database

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a block does not exist in storage.
var ErrNotFound = errors.New("block not found")

// ErrAmountOverflow is returned when adding amounts exceeds what an int64
// can hold.
var ErrAmountOverflow = errors.New("amount overflows")

// StructuralError is used when a record has the wrong shape, such as a
// missing field or the wrong number of elements.
type StructuralError struct {
	Reason string
}

// NewStructuralError constructs a structural error with the reason.
func NewStructuralError(reason string) error {
	return &StructuralError{Reason: reason}
}

// Error implements the error interface.
func (se *StructuralError) Error() string {
	return se.Reason
}

// IsStructuralError checks if an error of type StructuralError exists.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// =============================================================================

// ValidationError is used when a record is well formed but breaks one or
// more rules. All the violations that were found are kept in order.
type ValidationError struct {
	Message    string
	Violations []string
}

// NewValidationError constructs a validation error from a list of violations.
func NewValidationError(message string, violations []string) error {
	return &ValidationError{
		Message:    message,
		Violations: violations,
	}
}

// Error implements the error interface. The violations are joined so every
// problem is reported at once.
func (ve *ValidationError) Error() string {
	msg := strings.Join(ve.Violations, ". ")
	if ve.Message == "" {
		return msg
	}

	return ve.Message + " " + msg
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationError returns a copy of the ValidationError pointer.
func GetValidationError(err error) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return ve
}

// check converts a list of violations into an error.
func check(message string, violations []string) error {
	if len(violations) == 0 {
		return nil
	}

	return NewValidationError(message, violations)
}

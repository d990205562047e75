package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not_found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidCurrency = errors.New("invalid_currency")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors batches every failed field so a caller can surface
// all of them at once instead of one per round trip.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	return "validation error"
}

// Add appends a field error.
func (v *ValidationErrors) Add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Any reports whether at least one field failed.
func (v *ValidationErrors) Any() bool {
	return len(v.Errors) > 0
}

// NewValidationError builds a single-field validation failure.
func NewValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []FieldError{{Field: field, Code: code, Message: message}}}
}

// InvalidTransitionError rejects a lifecycle transition, identifying
// both the current and the requested status.
type InvalidTransitionError struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

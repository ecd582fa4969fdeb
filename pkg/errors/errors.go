package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrEntryNotFound    = errors.New("entry not found")
	ErrEntryExists      = errors.New("entry already exists")
	ErrValidationFailed = errors.New("validation failed")
	ErrStoreFailure     = errors.New("store operation failed")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeEntryNotFound    = "ENTRY_NOT_FOUND"
	ErrCodeDuplicateKey     = "DUPLICATE_KEY"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeStoreError       = "STORE_ERROR"
)

// FieldError names a single violated field rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field rule of one input so the
// caller can display all problems at once.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrCodeValidationFailed, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from field errors
func NewValidationError(fields []FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Wrap common errors with business context
func WrapEntryNotFound(applicationNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeEntryNotFound,
		fmt.Sprintf("Entry with application number %s not found", applicationNumber),
		ErrEntryNotFound,
	)
}

func WrapDuplicateKey(applicationNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateKey,
		fmt.Sprintf("Entry with application number %s already exists", applicationNumber),
		ErrEntryExists,
	)
}

func WrapStoreError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeStoreError,
		"store operation failed",
		fmt.Errorf("%w: %w", ErrStoreFailure, err),
	)
}

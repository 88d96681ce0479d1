package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory represents the category of error
type ErrorCategory string

const (
	// ErrorCategoryConfiguration represents errors in flags, environment or manifest
	ErrorCategoryConfiguration ErrorCategory = "CONFIGURATION"
	// ErrorCategoryShard represents shard registration and lookup errors
	ErrorCategoryShard ErrorCategory = "SHARD"
	// ErrorCategorySubshard represents subshard addressing errors
	ErrorCategorySubshard ErrorCategory = "SUBSHARD"
	// ErrorCategoryExecution represents failures to launch external commands
	ErrorCategoryExecution ErrorCategory = "EXECUTION"
)

// DispatchError represents a structured error with context and troubleshooting information
type DispatchError struct {
	Category        ErrorCategory
	Code            string
	Message         string
	Operation       string
	Context         map[string]interface{}
	Troubleshooting []string
	OriginalError   error

	// kind is the sentinel matched by errors.Is
	kind error
}

// Error implements the error interface
func (e *DispatchError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s-%s: %s", e.Category, e.Code, e.Message))

	if e.OriginalError != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.OriginalError))
	}

	return sb.String()
}

// Unwrap returns the original error for error chain compatibility
func (e *DispatchError) Unwrap() error {
	return e.OriginalError
}

// Is reports whether target is the sentinel this error was built from
func (e *DispatchError) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// NewDispatchError creates a new dispatch error with the specified parameters
func NewDispatchError(category ErrorCategory, code, message, operation string) *DispatchError {
	return &DispatchError{
		Category:        category,
		Code:            code,
		Message:         message,
		Operation:       operation,
		Context:         make(map[string]interface{}),
		Troubleshooting: []string{},
	}
}

// WithContext adds context information to the error
func (e *DispatchError) WithContext(key string, value interface{}) *DispatchError {
	e.Context[key] = value
	return e
}

// WithTroubleshooting adds troubleshooting steps to the error
func (e *DispatchError) WithTroubleshooting(steps ...string) *DispatchError {
	e.Troubleshooting = append(e.Troubleshooting, steps...)
	return e
}

// WithOriginalError adds the original error to the dispatch error
func (e *DispatchError) WithOriginalError(err error) *DispatchError {
	e.OriginalError = err
	return e
}

func (e *DispatchError) withKind(kind error) *DispatchError {
	e.kind = kind
	return e
}

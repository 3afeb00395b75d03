package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, not_implemented, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// Copies made through WithCause/WithMessage/WithDetails still match the
// predefined error they were derived from.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// UI element errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrElementNotEnabled = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "element_not_enabled",
		Message:  "element not enabled",
	}
	ErrElementNotClickable = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "element_not_clickable",
		Message:  "element not clickable",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// Connection errors
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}
	ErrNoSession = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "no_session",
		Message:  "automation session is closed",
	}

	// Unsupported actions
	ErrNotImplemented = &ExecutionError{
		Category: ErrCategoryUnsupported,
		Code:     "not_implemented",
		Message:  "not implemented",
	}

	// Protocol errors
	ErrUnsupportedReport = &ExecutionError{
		Category: ErrCategoryProtocol,
		Code:     "unsupported_report",
		Message:  "unsupported report type",
	}
	ErrCorrelationMismatch = &ExecutionError{
		Category: ErrCategoryProtocol,
		Code:     "correlation_mismatch",
		Message:  "no pending event with this identifier",
	}
	ErrUnknownAction = &ExecutionError{
		Category: ErrCategoryProtocol,
		Code:     "unknown_action",
		Message:  "unknown action",
	}

	// Internal invariant violations
	ErrLockQueueEmpty = &ExecutionError{
		Category: ErrCategoryInternal,
		Code:     "lock_queue_empty",
		Message:  "lock queue empty",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// NotImplemented returns ErrNotImplemented naming the operation.
func NotImplemented(op string) *ExecutionError {
	return ErrNotImplemented.WithMessage(op + " not implemented")
}

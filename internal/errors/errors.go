// Package errors provides structured error types for the eventlake pipeline.
// All errors include a category, code, message, and retryable flag so that
// callers can tell client-class failures from backend-class failures.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory classifies errors by the component or backend that failed.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryStream     ErrorCategory = "STREAM"
	ErrCategoryJob        ErrorCategory = "JOB"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidBody       = "INVALID_BODY"
	CodeInvalidChangeFeed = "INVALID_CHANGE_FEED"
	CodeMissingParameter  = "MISSING_PARAMETER"

	// Store codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeReadFailed  = "READ_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeListFailed     = "LIST_FAILED"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Stream codes
	CodePublishFailed = "PUBLISH_FAILED"

	// Job codes
	CodeNoInput    = "NO_INPUT"
	CodeLoadFailed = "LOAD_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Nothing in this module retries; the flag is advice for the invoking harness.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return GetCategory(err) == ErrCategoryValidation
}

// HTTPStatus maps an error onto the status class reported to callers:
// 200 for nil, 400 for validation failures, 500 for everything else.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isRetryable marks transient backend failures.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStore && (code == CodeWriteFailed || code == CodeReadFailed):
		return true
	case category == ErrCategoryStorage && code != CodeObjectNotFound:
		return true
	case category == ErrCategoryStream && code == CodePublishFailed:
		return true
	case category == ErrCategoryJob && code == CodeLoadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *PipelineError {
	return New(ErrCategoryValidation, code, message)
}

func NewStoreError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewStorageError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewStreamError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStream, CodePublishFailed, message, cause)
}

func NewJobError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryJob, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

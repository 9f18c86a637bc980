package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ToolNotFound indicates an external tool binary is not on PATH
	ToolNotFound ErrorCode = "TOOL_NOT_FOUND"
	// ToolFailure indicates an external tool exited nonzero
	ToolFailure ErrorCode = "TOOL_FAILURE"
	// ParseMiss indicates diagnostic text could not be parsed
	ParseMiss ErrorCode = "PARSE_MISS"
	// StalePatch indicates the file changed since the diagnostic was captured
	StalePatch ErrorCode = "STALE_PATCH"
	// AmbiguousMatch indicates the resolver found no confident candidate
	AmbiguousMatch ErrorCode = "AMBIGUOUS_MATCH"
	// EncodingError indicates undecodable bytes in a source file
	EncodingError ErrorCode = "ENCODING_ERROR"
	// InvalidPath indicates the project root argument is missing or not a directory
	InvalidPath ErrorCode = "INVALID_PATH"
	// StorageError indicates a run-log database failure
	StorageError ErrorCode = "STORAGE_ERROR"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixError represents a pyfix error with a stable code and message
type FixError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new FixError
func New(code ErrorCode, message string, cause error) *FixError {
	return &FixError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *FixError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *FixError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *FixError) WithDetails(details interface{}) *FixError {
	e.Details = details
	return e
}

// IsFatal reports whether the error should abort the run before any
// mutation. Only invalid invocation arguments qualify; every other
// failure mode degrades to skip-and-report.
func IsFatal(err error) bool {
	fe, ok := err.(*FixError)
	if !ok {
		return false
	}
	return fe.Code == InvalidPath
}

// Package errors provides structured error types for d2site.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the build pipeline and the CLI
//   - Machine-readable error codes for programmatic handling
//   - Short messages suitable for embedding in rendered pages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Diagram rendering failures fall into four categories, each with its own
// code:
//   - SCRATCH_DIR: the scratch directory could not be created
//   - RENDERER_NOT_FOUND: the renderer binary is missing or not executable
//   - RENDER_FAILED: the renderer ran but rejected the diagram source
//   - MISSING_OUTPUT: the renderer exited cleanly but left no readable output
//
// A renderer that exceeds its deadline is reported as TIMEOUT.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeScratchDir, origErr, "create %s", dir)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeFileNotFound     Code = "FILE_NOT_FOUND"
	ErrCodeRendererNotFound Code = "RENDERER_NOT_FOUND"

	// Rendering errors
	ErrCodeScratchDir    Code = "SCRATCH_DIR"
	ErrCodeRenderFailed  Code = "RENDER_FAILED"
	ErrCodeMissingOutput Code = "MISSING_OUTPUT"
	ErrCodeTimeout       Code = "TIMEOUT"

	// Infrastructure errors
	ErrCodeCache    Code = "CACHE"
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a reader-facing message for the error.
// For *Error types, returns the message without the code prefix, followed
// by the cause when there is one. For other errors, returns the error
// string as-is.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Message, UserMessage(e.Cause))
		}
		return e.Message
	}
	return err.Error()
}

// Package errors provides the structured error type shared by devserve
// packages. Errors carry a category and a short code so callers can branch on
// the kind of failure without string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeResolve   ErrorType = "resolve"
	ErrorTypeTransform ErrorType = "transform"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeConfig    ErrorType = "config"
)

// Resolution codes.
const (
	CodeNotFound    = "NOT_FOUND"
	CodeOutsideRoot = "OUTSIDE_ROOT"
	CodeIsDirectory = "IS_DIRECTORY"
)

// Comparison targets for errors.Is against resolution failures.
var (
	ErrNotFound    = &DevError{Type: ErrorTypeResolve, Code: CodeNotFound}
	ErrOutsideRoot = &DevError{Type: ErrorTypeResolve, Code: CodeOutsideRoot}
	ErrIsDirectory = &DevError{Type: ErrorTypeResolve, Code: CodeIsDirectory}
)

// DevError is a structured error type with context.
type DevError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Path    string
}

// Error implements the error interface.
func (e *DevError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *DevError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code.
func (e *DevError) Is(target error) bool {
	var t *DevError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithPath sets the filesystem path the error refers to.
func (e *DevError) WithPath(path string) *DevError {
	e.Path = path
	return e
}

// NewResolveError creates a path resolution error.
func NewResolveError(code, path string, cause error) *DevError {
	return &DevError{
		Type:    ErrorTypeResolve,
		Code:    code,
		Message: "cannot resolve path",
		Cause:   cause,
		Path:    path,
	}
}

// NewTransformError creates a transform error.
func NewTransformError(code, message string, cause error) *DevError {
	return &DevError{
		Type:    ErrorTypeTransform,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *DevError {
	return &DevError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *DevError {
	return &DevError{
		Type:    ErrorTypeNetwork,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *DevError {
	return &DevError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// IsType reports whether any error in err's chain is a DevError of type t.
func IsType(err error, t ErrorType) bool {
	var de *DevError
	if errors.As(err, &de) {
		return de.Type == t
	}
	return false
}

// Wrap attaches a message to err, leaving nil untouched.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

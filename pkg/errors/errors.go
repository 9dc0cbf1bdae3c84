// Package errors provides structured error types for the roundup tool.
//
// Error codes follow the release-pipeline failure taxonomy:
//   - PARSE_*: malformed version or constraint strings
//   - UNSATISFIABLE_CONSTRAINT: no existing tag can satisfy a constraint
//   - LOGIC_ERROR: internal invariant violated (tool/environment bug)
//   - MERGE_CONFLICT: a git merge stopped on conflicts
//   - NOT_FOUND / NETWORK_ERROR / TIMEOUT: remote API failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeParse, "malformed version %q", raw)
//	if errors.Is(err, errors.ErrCodeParse) {
//	    // Handle parse failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different failure categories.
const (
	// Version and constraint grammar errors
	ErrCodeParse             Code = "PARSE_ERROR"
	ErrCodeInvalidConstraint Code = "INVALID_CONSTRAINT"

	// Planning errors
	ErrCodeUnsatisfiableConstraint Code = "UNSATISFIABLE_CONSTRAINT"
	ErrCodeDuplicateRelease        Code = "DUPLICATE_RELEASE"

	// Internal invariant violations; a tool or checkout bug, not a user error
	ErrCodeLogic Code = "LOGIC_ERROR"

	// Git errors
	ErrCodeMergeConflict Code = "MERGE_CONFLICT"
	ErrCodeGit           Code = "GIT_ERROR"

	// Configuration errors
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"

	// Remote API errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeTimeout  Code = "TIMEOUT"
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

// Is reports whether err carries the given error code.
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

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// MergeConflictError reports a merge that halted on conflicts, with enough
// context for the user to resolve it by hand and re-run.
type MergeConflictError struct {
	Directory string // Working tree where the conflict occurred
	From      string // Ref being merged in
	Output    string // Raw git output containing the conflict markers
}

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %s while merging %s", e.Directory, e.From)
}

// Remediation returns the manual steps to resolve the conflict.
func (e *MergeConflictError) Remediation() string {
	return fmt.Sprintf(
		"Resolve the conflict manually:\n  cd %s\n  git status\n  # fix conflicting files\n  git add -A && git commit\nthen re-run the command.",
		e.Directory,
	)
}

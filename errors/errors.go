// Package errors provides error handling for verseblueprint.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for CLI users
//
// Usage:
//
//	// Wrap with context
//	if err := os.WriteFile(path, data, 0644); err != nil {
//	    return errors.Wrapf(err, "write %s", path)
//	}
//
//	// Report a missing input file
//	return errors.NewNotFoundError("digest file not found: %s", path)
//
//	// Check errors
//	if errors.IsNotFoundError(err) {
//	    // surface to the user
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors shared across the pipeline.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates an input file (digest, graph record, workspace) does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates malformed user input (script line, CLI argument)
	ErrInvalidRequest = New("invalid request")

	// ErrDanglingReference indicates a connection or node property that points at
	// nothing. Generation ignores these; only opt-in validation reports them.
	ErrDanglingReference = New("dangling reference")

	// ErrIncompatibleRecord indicates a persisted graph written by an unsupported format version
	ErrIncompatibleRecord = New("incompatible record")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// WrapNotFound wraps an error as a not-found error with context
func WrapNotFound(err error, context string) error {
	return Wrap(Wrap(ErrNotFound, err.Error()), context)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

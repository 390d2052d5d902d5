// Package apperr defines the error taxonomy shared across Zet.
//
// Callers match on the sentinel values with errors.Is, or extract a
// *ParseError with errors.As when they need the offending file path.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when note input fails validation
	// (empty title or author).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an operation names an unknown note id.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a primary-key or uniqueness violation
	// in the index, or when an update targets a missing row.
	ErrConflict = errors.New("index conflict")

	// ErrTitleClash is the user-facing form of a collision during note
	// creation: the slug-derived filename (or the note id) already exists.
	ErrTitleClash = errors.New("title clash")

	// ErrIndexUnavailable is returned when the index database cannot be
	// opened or created at all. Fatal for any index operation.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrVersionControl wraps failures of the external git binary,
	// carrying its combined output.
	ErrVersionControl = errors.New("version control failure")

	// ErrAlreadyInitialized is returned when initializing a vault that
	// already holds an index, unless force is requested.
	ErrAlreadyInitialized = errors.New("vault already initialized")
)

// ParseError reports a malformed on-disk note. During a full-vault scan
// these are collected and reported, never fatal.
type ParseError struct {
	Path   string // vault-relative path, empty when parsing raw bytes
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	var msg string
	switch {
	case e.Reason != "" && e.Err != nil:
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	case e.Reason != "":
		msg = e.Reason
	case e.Err != nil:
		msg = e.Err.Error()
	default:
		msg = "malformed note"
	}
	if e.Path != "" {
		return fmt.Sprintf("parse %s: %s", e.Path, msg)
	}
	return "parse note: " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

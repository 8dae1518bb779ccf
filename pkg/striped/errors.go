package striped

import (
	"errors"
	"fmt"
)

// Striped errors mean the columns broke one of their own invariants or did
// not match the logical tree they were built from. Valid input never
// produces them; they point at a bug or at corrupted data.
var (
	ErrConversion       = errors.New("internal consistency failure during conversion")
	ErrRowCountMismatch = errors.New("internal consistency failure: row count mismatch")
	ErrOffsets          = errors.New("internal consistency failure: corrupted offsets")
	ErrTags             = errors.New("internal consistency failure: corrupted enum tags")
	ErrColumnMismatch   = errors.New("internal consistency failure: column mismatch")
)

type Error struct {
	Kind   error
	Path   string
	Detail string
	// Cause is set for conversion failures and holds the *schema.Error
	// describing where the logical tree left the schema.
	Cause error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind error, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...)}
}

package schema

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrMissingField       = errors.New("missing field")
	ErrUnknownField       = errors.New("unknown field")
	ErrIncompatibleSchema = errors.New("incompatible schema")
	ErrInvalidEncoding    = errors.New("invalid encoding")
	ErrUnsupportedType    = errors.New("unsupported type")
)

// Error is a schema violation found while walking a schema together with a
// value, or while checking a schema on its own.
//
// Kind is one of the Err* sentinels, so callers can use errors.Is to branch on
// it, while errors.As gives access to the structured fields.
type Error struct {
	Kind error
	// Path locates the offending node, e.g. "[3].name" or "{key}".
	Path string

	Expected string
	Actual   string
	Field    string
	Reason   string
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case ErrTypeMismatch:
		msg = fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Actual)
	case ErrMissingField:
		msg = fmt.Sprintf("missing field %q", e.Field)
	case ErrUnknownField:
		msg = fmt.Sprintf("unknown field %q", e.Field)
	case ErrIncompatibleSchema:
		msg = fmt.Sprintf("incompatible schema: source %s, target %s", e.Actual, e.Expected)
	case ErrInvalidEncoding:
		msg = fmt.Sprintf("invalid encoding: %s", e.Reason)
	case ErrUnsupportedType:
		msg = fmt.Sprintf("unsupported type: %s", e.Reason)
	default:
		msg = fmt.Sprintf("schema error: %s", e.Reason)
	}

	if e.Path != "" {
		return "at " + e.Path + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func TypeMismatch(path, expected, actual string) *Error {
	return &Error{Kind: ErrTypeMismatch, Path: path, Expected: expected, Actual: actual}
}

func MissingField(path, name string) *Error {
	return &Error{Kind: ErrMissingField, Path: path, Field: name}
}

func UnknownField(path, name string) *Error {
	return &Error{Kind: ErrUnknownField, Path: path, Field: name}
}

func IncompatibleSchema(source, target string) *Error {
	return &Error{Kind: ErrIncompatibleSchema, Actual: source, Expected: target}
}

func InvalidEncoding(path, reason string) *Error {
	return &Error{Kind: ErrInvalidEncoding, Path: path, Reason: reason}
}

func UnsupportedType(path, reason string) *Error {
	return &Error{Kind: ErrUnsupportedType, Path: path, Reason: reason}
}

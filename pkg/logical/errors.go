package logical

import (
	"errors"
	"fmt"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

var (
	// ErrInvalidValue marks input that cannot be read as a value at all, e.g.
	// malformed JSON or an integer literal that does not fit in 64 bits.
	ErrInvalidValue = errors.New("invalid value")
	// ErrStructureMismatch marks input whose shape does not follow the schema.
	ErrStructureMismatch = errors.New("structure mismatch")
	// ErrValidationFailure marks a logical tree rejected by schema validation.
	ErrValidationFailure = errors.New("validation failure")
)

// Error is raised while building or reading a logical tree. Cause holds the
// lower level error, typically a *schema.Error.
type Error struct {
	Kind   error
	Path   string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
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

func invalidValue(path, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidValue, Path: path, Reason: fmt.Sprintf(format, args...)}
}

func structureMismatch(cause *schema.Error) *Error {
	return &Error{Kind: ErrStructureMismatch, Cause: cause}
}

func validationFailure(cause error) *Error {
	return &Error{Kind: ErrValidationFailure, Cause: cause}
}

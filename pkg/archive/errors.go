package archive

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHeader        = errors.New("invalid header")
	ErrUnsupportedVersion   = errors.New("unsupported format version")
	ErrCorruptedData        = errors.New("corrupted data")
	ErrDecompressionFailure = errors.New("decompression failure")
	ErrSerializationFailure = errors.New("serialization failure")
)

// noBlock marks errors that are not tied to a block of the body.
const noBlock = -1

type Error struct {
	Kind error
	// Version is the format version found in the header, set with
	// ErrUnsupportedVersion.
	Version uint32
	// Block is the index of the failing block counted from the start of the
	// body, or -1.
	Block  int
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Kind == ErrUnsupportedVersion {
		msg += fmt.Sprintf(" %d", e.Version)
	}
	if e.Block >= 0 {
		msg += fmt.Sprintf(" in block %d", e.Block)
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

func headerError(detail string, cause error) *Error {
	return &Error{Kind: ErrInvalidHeader, Block: noBlock, Detail: detail, Cause: cause}
}

func serializationError(detail string, cause error) *Error {
	return &Error{Kind: ErrSerializationFailure, Block: noBlock, Detail: detail, Cause: cause}
}

func blockError(kind error, block int, detail string, cause error) *Error {
	return &Error{Kind: kind, Block: block, Detail: detail, Cause: cause}
}

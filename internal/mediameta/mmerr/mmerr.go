// Package mmerr defines the error kinds shared by every mediameta codec and
// container reader.
package mmerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", kind) and match with
// errors.Is.
var (
	// Truncated means the reader ran out of bytes decoding a fixed-size
	// structure.
	Truncated = errors.New("mediameta: truncated")

	// CorruptFile means a wire-format invariant was violated (bad magic,
	// negative size, invalid frame) at a point where decoding cannot
	// continue.
	CorruptFile = errors.New("mediameta: corrupt file")

	// UnsupportedFormat means the declared mime type has no registered
	// container reader.
	UnsupportedFormat = errors.New("mediameta: unsupported format")

	// UnsupportedTagOperation means the caller asked a tag type to
	// represent a field it cannot carry.
	UnsupportedTagOperation = errors.New("mediameta: unsupported tag operation")

	// IoFailure means the underlying stream failed.
	IoFailure = errors.New("mediameta: I/O failure")
)

// Truncatedf wraps Truncated with context.
func Truncatedf(format string, args ...any) error {
	return wrap(Truncated, format, args...)
}

// CorruptFilef wraps CorruptFile with context.
func CorruptFilef(format string, args ...any) error {
	return wrap(CorruptFile, format, args...)
}

// UnsupportedFormatf wraps UnsupportedFormat with context.
func UnsupportedFormatf(format string, args ...any) error {
	return wrap(UnsupportedFormat, format, args...)
}

// UnsupportedTagOperationf wraps UnsupportedTagOperation with context.
func UnsupportedTagOperationf(format string, args ...any) error {
	return wrap(UnsupportedTagOperation, format, args...)
}

// IoFailuref wraps IoFailure with context.
func IoFailuref(format string, args ...any) error {
	return wrap(IoFailure, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &kindError{kind: kind, msg: msg}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg + ": " + e.kind.Error() }
func (e *kindError) Unwrap() error { return e.kind }

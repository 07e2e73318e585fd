package rito

import (
	"fmt"

	"github.com/pkg/errors"
)

// Decode failure kinds. Every error returned by a decoder unwraps to exactly
// one of them.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrOutOfBounds       = errors.New("out of bounds")
	ErrTruncated         = errors.New("truncated")
	ErrNotImplemented    = errors.New("not implemented")
)

// DecodeError points at the field and absolute buffer offset that made a
// decode fail.
type DecodeError struct {
	Kind   error
	Field  string
	Offset int64
	Msg    string
}

func (e *DecodeError) Error() string {
	s := e.Kind.Error()
	if e.Field != "" {
		s += fmt.Sprintf(" at %s", e.Field)
	}
	if e.Offset >= 0 {
		s += fmt.Sprintf(" (0x%x)", e.Offset)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *DecodeError) Unwrap() error { return e.Kind }

func newError(kind error, field string, offset int64, format string, args ...interface{}) error {
	return errors.WithStack(&DecodeError{
		Kind:   kind,
		Field:  field,
		Offset: offset,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// Offset -1 means the failure is not tied to a buffer position.

func Unsupported(field string, offset int64, format string, args ...interface{}) error {
	return newError(ErrUnsupportedFormat, field, offset, format, args...)
}

func OutOfBounds(field string, offset int64, format string, args ...interface{}) error {
	return newError(ErrOutOfBounds, field, offset, format, args...)
}

func Truncated(field string, offset int64, format string, args ...interface{}) error {
	return newError(ErrTruncated, field, offset, format, args...)
}

func NotImplemented(field string, offset int64, format string, args ...interface{}) error {
	return newError(ErrNotImplemented, field, offset, format, args...)
}

// KindOf returns the failure kind of err, or nil if err is not a decode error.
func KindOf(err error) error {
	for _, kind := range []error{ErrUnsupportedFormat, ErrOutOfBounds, ErrTruncated, ErrNotImplemented} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

package types

import (
	"errors"
	"fmt"
)

// Pattern compile errors
var (
	ErrEmptyPattern               = errors.New("pattern has no fields")
	ErrNotAField                  = errors.New("not a field")
	ErrMissingType                = errors.New("field has no type")
	ErrDuplicateName              = errors.New("duplicate field name")
	ErrUnknownType                = errors.New("unknown type")
	ErrMalformedInternalSeparator = errors.New("internal separator marker without separator")
)

// Line decode errors
var (
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrSeparatorNotFound = errors.New("separator not found")
)

// File errors
var (
	ErrFileNotFound = errors.New("file not found")
	ErrReadFailure  = errors.New("read failure")
)

// PatternError reports a pattern that failed to compile.
// Kind is one of the pattern sentinels above.
type PatternError struct {
	Kind    error
	Pattern string
	Pos     int    // byte offset into Pattern where the problem was found
	Name    string // field or type name involved, if any
}

func (e *PatternError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("pattern %q: %v %q at offset %d", e.Pattern, e.Kind, e.Name, e.Pos)
	}
	return fmt.Sprintf("pattern %q: %v at offset %d", e.Pattern, e.Kind, e.Pos)
}

func (e *PatternError) Unwrap() error {
	return e.Kind
}

// DecodeError reports a line that could not be decoded into a record.
type DecodeError struct {
	Kind      error
	Field     string
	Raw       string // offending text for TypeMismatch
	Separator rune   // expected separator for SeparatorNotFound
	Line      int    // 1-based line number, 0 when decoding a detached line
	Err       error  // converter error, if any
}

func (e *DecodeError) Error() string {
	var msg string
	if e.Kind == ErrSeparatorNotFound {
		msg = fmt.Sprintf("field %q: %v (expected %q)", e.Field, e.Kind, e.Separator)
	} else {
		msg = fmt.Sprintf("field %q: %v for %q", e.Field, e.Kind, e.Raw)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IOError reports a file that could not be opened or read.
type IOError struct {
	Kind error
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Kind)
}

func (e *IOError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

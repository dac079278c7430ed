// Package types provides shared type definitions for tabparse.
//
// This package defines the values produced by the parser core (records and
// columns), the converter signature used by the type registry, and the error
// taxonomy shared by every layer.
//
// # Records and Columns
//
// Record holds one decoded line. Field order follows the line pattern:
//
//	rec.Names()      // [val val2 val3]
//	v, ok := rec.Get("val2")
//
// Columns aggregates many records column by column, preserving record order:
//
//	cols := types.NewColumns([]string{"val", "val2"})
//	cols.Append(rec)
//	vals, _ := cols.Get("val2")
//
// # Errors
//
// Three error types cover the three failure stages:
//
//	*PatternError  // compile time: ErrEmptyPattern, ErrNotAField, ErrMissingType,
//	               // ErrDuplicateName, ErrUnknownType, ErrMalformedInternalSeparator
//	*DecodeError   // per line: ErrTypeMismatch, ErrSeparatorNotFound
//	*IOError       // file access: ErrFileNotFound, ErrReadFailure
//
// Each unwraps to its kind sentinel, so callers test with errors.Is:
//
//	if errors.Is(err, types.ErrTypeMismatch) {
//	    var de *types.DecodeError
//	    errors.As(err, &de)
//	    log.Printf("bad value %q in %s", de.Raw, de.Field)
//	}
package types

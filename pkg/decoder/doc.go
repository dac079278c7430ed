// Package decoder applies a compiled line pattern to one line of text.
//
//	c := pattern.MustCompile("$val:float|$val2:int|$val3:str", '\t', nil)
//	rec, err := decoder.Decode(c, "1.0\t2\t3")
//	// rec: {val: 1.0, val2: 2, val3: "3"}
//
// Decoding walks the separators in order. Each separator ends the current
// field; the text between the previous cursor and the separator is converted
// with that field's converter. Whatever follows the last separator belongs to
// the last field.
//
// Failures are all-or-nothing. A converter error yields a *types.DecodeError
// of kind types.ErrTypeMismatch carrying the field name and raw text. A
// separator missing from the line yields types.ErrSeparatorNotFound.
//
// Decode never mutates the compiled pattern, so one pattern can be decoded
// from any number of goroutines.
package decoder

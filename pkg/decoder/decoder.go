package decoder

import (
	"strings"

	"github.com/dshills/tabparse/pkg/pattern"
	"github.com/dshills/tabparse/pkg/types"
)

// Decoder applies one compiled pattern to lines of text
type Decoder struct {
	compiled *pattern.Compiled
}

// New creates a Decoder for a compiled pattern
func New(compiled *pattern.Compiled) *Decoder {
	return &Decoder{compiled: compiled}
}

// Compiled returns the pattern the decoder applies
func (d *Decoder) Compiled() *pattern.Compiled {
	return d.compiled
}

// Decode converts one line into a record
func (d *Decoder) Decode(line string) (*types.Record, error) {
	return Decode(d.compiled, line)
}

// Decode converts one line into a record. A single trailing line terminator
// is ignored. On failure no record is returned; the error is a
// *types.DecodeError of kind ErrTypeMismatch or ErrSeparatorNotFound, or a
// *types.PatternError of kind ErrEmptyPattern for a pattern with no fields.
func Decode(compiled *pattern.Compiled, line string) (*types.Record, error) {
	if compiled == nil || compiled.Len() == 0 {
		return nil, &types.PatternError{Kind: types.ErrEmptyPattern}
	}
	line = TrimTerminator(line)
	rec := types.NewRecord(compiled.Len())
	last := compiled.Len() - 1
	cursor := 0

	for i := 0; i < last; i++ {
		field := compiled.Field(i)
		sep := compiled.Terminator(i)
		// Exact byte match: U+FFFD must not match invalid bytes
		// (IndexRune does)
		sepText := string(sep)
		idx := strings.Index(line[cursor:], sepText)
		if idx < 0 {
			return nil, &types.DecodeError{
				Kind:      types.ErrSeparatorNotFound,
				Field:     field.Name,
				Separator: sep,
			}
		}

		raw := line[cursor : cursor+idx]
		if err := convertInto(rec, field, raw); err != nil {
			return nil, err
		}
		cursor += idx + len(sepText)
	}

	if err := convertInto(rec, compiled.Field(last), line[cursor:]); err != nil {
		return nil, err
	}
	return rec, nil
}

func convertInto(rec *types.Record, field pattern.Field, raw string) error {
	value, err := field.Convert(raw)
	if err != nil {
		return &types.DecodeError{
			Kind:  types.ErrTypeMismatch,
			Field: field.Name,
			Raw:   raw,
			Err:   err,
		}
	}
	rec.Set(field.Name, value)
	return nil
}

// TrimTerminator strips one trailing "\r\n", "\n" or "\r"
func TrimTerminator(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2]
	case strings.HasSuffix(line, "\n"), strings.HasSuffix(line, "\r"):
		return line[:len(line)-1]
	}
	return line
}

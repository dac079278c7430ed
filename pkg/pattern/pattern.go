package pattern

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/tabparse/pkg/registry"
	"github.com/dshills/tabparse/pkg/types"
)

// Grammar markers
const (
	FieldMarker             = '$'
	TypeMarker              = ':'
	SeparatorMarker         = '|'
	InternalSeparatorMarker = '\''
)

// DefaultSeparator is the global separator used when none is given
const DefaultSeparator = '\t'

// Field describes one typed field of a compiled pattern
type Field struct {
	Name    string
	Type    string
	Convert types.Converter
}

// Compiled is the immutable program produced from a line pattern.
// separators[i] terminates fields[i]; the last field has no terminator.
type Compiled struct {
	source     string
	separator  rune
	fields     []Field
	separators []rune
}

// Compile parses a line pattern against the registry. A nil registry means
// registry.Default(). sep is the global separator recorded for fields ended
// by '|'.
func Compile(src string, sep rune, reg *registry.Registry) (*Compiled, error) {
	if reg == nil {
		reg = registry.Default()
	}
	if src == "" {
		return nil, patternError(types.ErrEmptyPattern, src, 0, "")
	}

	c := &Compiled{
		source:    src,
		separator: sep,
	}
	seen := make(map[string]struct{})
	pos := 0

	for {
		if pos >= len(src) || src[pos] != FieldMarker {
			return nil, patternError(types.ErrNotAField, src, pos, "")
		}
		pos++

		// Field name runs to the type marker
		end := strings.IndexAny(src[pos:], ":|'$")
		if end < 0 || src[pos+end] != TypeMarker {
			return nil, patternError(types.ErrMissingType, src, pos, nameUntil(src[pos:], end))
		}
		name := src[pos : pos+end]
		if name == "" {
			return nil, patternError(types.ErrNotAField, src, pos, "")
		}
		if _, dup := seen[name]; dup {
			return nil, patternError(types.ErrDuplicateName, src, pos, name)
		}
		seen[name] = struct{}{}
		pos += end + 1

		// Type name runs to a separator marker or the end of the pattern
		end = strings.IndexAny(src[pos:], "|'")
		typeName := src[pos:]
		if end >= 0 {
			typeName = src[pos : pos+end]
		}
		conv, err := reg.Lookup(typeName)
		if err != nil {
			return nil, patternError(types.ErrUnknownType, src, pos, typeName)
		}
		c.fields = append(c.fields, Field{Name: name, Type: typeName, Convert: conv})

		if end < 0 {
			return c, nil
		}
		pos += end

		if src[pos] == SeparatorMarker {
			c.separators = append(c.separators, sep)
			pos++
			continue
		}

		// Internal separator: the next rune ends this field
		pos++
		if pos >= len(src) {
			return nil, patternError(types.ErrMalformedInternalSeparator, src, pos-1, name)
		}
		r, size := utf8.DecodeRuneInString(src[pos:])
		if r == utf8.RuneError && size == 1 {
			return nil, patternError(types.ErrMalformedInternalSeparator, src, pos, name)
		}
		c.separators = append(c.separators, r)
		pos += size
	}
}

// MustCompile is like Compile but panics on error
func MustCompile(src string, sep rune, reg *registry.Registry) *Compiled {
	c, err := Compile(src, sep, reg)
	if err != nil {
		panic(err)
	}
	return c
}

func patternError(kind error, src string, pos int, name string) error {
	return &types.PatternError{Kind: kind, Pattern: src, Pos: pos, Name: name}
}

func nameUntil(s string, end int) string {
	if end < 0 {
		return s
	}
	return s[:end]
}

// Fields returns the field descriptors in pattern order
func (c *Compiled) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Field returns the i-th field descriptor
func (c *Compiled) Field(i int) Field {
	return c.fields[i]
}

// Separators returns the field terminators in pattern order
func (c *Compiled) Separators() []rune {
	out := make([]rune, len(c.separators))
	copy(out, c.separators)
	return out
}

// Terminator returns the separator ending the i-th field, for i < Len()-1
func (c *Compiled) Terminator(i int) rune {
	return c.separators[i]
}

// Names returns the field names in pattern order
func (c *Compiled) Names() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of fields
func (c *Compiled) Len() int {
	return len(c.fields)
}

// Source returns the pattern text the program was compiled from
func (c *Compiled) Source() string {
	return c.source
}

// Separator returns the global separator
func (c *Compiled) Separator() rune {
	return c.separator
}

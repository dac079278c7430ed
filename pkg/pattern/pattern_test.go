package pattern

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tabparse/pkg/registry"
	"github.com/dshills/tabparse/pkg/types"
)

type nameType struct {
	Name string
	Type string
}

func fieldPairs(c *Compiled) []nameType {
	out := make([]nameType, 0, c.Len())
	for _, f := range c.Fields() {
		out = append(out, nameType{f.Name, f.Type})
	}
	return out
}

func TestCompile_GlobalSeparator(t *testing.T) {
	c, err := Compile("$val:float|$val2:int|$val3:str", '\t', nil)
	require.NoError(t, err)

	assert.Equal(t, []nameType{{"val", "float"}, {"val2", "int"}, {"val3", "str"}}, fieldPairs(c))
	assert.Equal(t, []rune{'\t', '\t'}, c.Separators())
	assert.Equal(t, []string{"val", "val2", "val3"}, c.Names())
	assert.Equal(t, "$val:float|$val2:int|$val3:str", c.Source())
	assert.Equal(t, '\t', c.Separator())
}

func TestCompile_SingleField(t *testing.T) {
	c, err := Compile("$val:float", '\t', nil)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	assert.Empty(t, c.Separators())
}

func TestCompile_InternalSeparator(t *testing.T) {
	c, err := Compile("$val:str'-$value:float|$val2:str'-$value2:float", '\t', nil)
	require.NoError(t, err)

	assert.Equal(t, []nameType{
		{"val", "str"}, {"value", "float"}, {"val2", "str"}, {"value2", "float"},
	}, fieldPairs(c))
	assert.Equal(t, []rune{'-', '\t', '-'}, c.Separators())
}

func TestCompile_InternalSeparatorMultibyte(t *testing.T) {
	c, err := Compile("$a:str'→$b:int", ',', nil)
	require.NoError(t, err)
	assert.Equal(t, []rune{'→'}, c.Separators())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		kind    error
		pos     int
		errName string
	}{
		{"empty", "", types.ErrEmptyPattern, 0, ""},
		{"missing field marker", "val:float", types.ErrNotAField, 0, ""},
		{"text after separator", "$a:int|b:int", types.ErrNotAField, 7, ""},
		{"dangling separator", "$a:int|", types.ErrNotAField, 7, ""},
		{"empty name", "$:int", types.ErrNotAField, 1, ""},
		{"no type marker", "$val", types.ErrMissingType, 1, "val"},
		{"separator before type", "$a|$b:int", types.ErrMissingType, 1, "a"},
		{"unknown type", "$val:vroom", types.ErrUnknownType, 5, "vroom"},
		{"empty type", "$val:|$b:int", types.ErrUnknownType, 5, ""},
		{"duplicate name", "$val:int|$val:float", types.ErrDuplicateName, 10, "val"},
		{"internal marker at end", "$val:str'", types.ErrMalformedInternalSeparator, 8, "val"},
		{"invalid byte as internal separator", "$a:str'\xff$b:str", types.ErrMalformedInternalSeparator, 7, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(tt.pattern, '\t', nil)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, tt.kind), "want %v, got %v", tt.kind, err)

			var pe *types.PatternError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.pattern, pe.Pattern)
			assert.Equal(t, tt.pos, pe.Pos)
			assert.Equal(t, tt.errName, pe.Name)
		})
	}
}

func TestCompile_CustomRegistry(t *testing.T) {
	reg := registry.New(registry.Entry{
		Name:    "upper",
		Convert: func(raw string) (any, error) { return strings.ToUpper(raw), nil },
	})

	c, err := Compile("$a:upper|$b:int", ',', reg)
	require.NoError(t, err)

	got, err := c.Field(0).Convert("abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)

	_, err = Compile("$a:upper", ',', nil)
	assert.ErrorIs(t, err, types.ErrUnknownType)
}

func TestCompiled_AccessorsReturnCopies(t *testing.T) {
	c := MustCompile("$a:int|$b:int", ',', nil)

	seps := c.Separators()
	seps[0] = 'x'
	fields := c.Fields()
	fields[0].Name = "changed"

	assert.Equal(t, []rune{','}, c.Separators())
	assert.Equal(t, "a", c.Field(0).Name)
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("nope", '\t', nil) })
}

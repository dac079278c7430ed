// Package pattern compiles line patterns into immutable field programs.
//
// A line pattern names and types every field of a delimited line:
//
//	$val:float|$val2:int|$val3:str
//
// # Grammar
//
//	$     starts a field
//	:     ends the field name and starts the type name
//	|     ends the field; the global separator terminates it in the line
//	'c    ends the field; the character c terminates it in the line
//
// The last field has no terminator and takes the rest of the line. The
// internal separator form nests a second delimiter inside a column:
//
//	$val:str'-$value:float
//
// decodes "sep-1.0" into {val: "sep", value: 1.0}.
//
// # Compiling
//
//	c, err := pattern.Compile("$val:float|$val2:int", '\t', nil)
//	if err != nil {
//	    var pe *types.PatternError
//	    errors.As(err, &pe) // Kind, Pos, Name
//	}
//	c.Fields()     // [{val float} {val2 int}]
//	c.Separators() // ['\t']
//
// Compilation is a pure function of the pattern, the separator and the
// registry. The result is never mutated and may be shared between goroutines.
//
// # Caching
//
// Cache compiles each (pattern, separator) pair once:
//
//	cache := pattern.NewCache(128, reg)
//	c, err := cache.Get(src, ',')
package pattern

// Package registry resolves type names used in line patterns to converters.
//
// A Registry is an explicit name -> converter table. It is seeded with the
// built-in scalar types and can be extended by the caller:
//
//	int    base-10 integer, stored as int64
//	float  floating point, stored as float64
//	str    raw text, unchanged
//	bool   strconv.ParseBool, stored as bool
//
// Numeric and bool converters ignore surrounding whitespace.
//
// # Custom Types
//
//	reg := registry.New(registry.Entry{
//	    Name: "date",
//	    Convert: func(raw string) (any, error) {
//	        return time.Parse("2006-01-02", raw)
//	    },
//	})
//
// Entries passed to New, and later calls to Register, shadow built-ins of the
// same name.
package registry

package types

// Converter turns the raw text of one field into a typed value
type Converter func(raw string) (any, error)

// Record is one decoded line: field names mapped to converted values,
// in pattern order
type Record struct {
	names  []string
	values map[string]any
}

// NewRecord creates an empty record sized for n fields
func NewRecord(n int) *Record {
	return &Record{
		names:  make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores a value, appending the name if it is new
func (r *Record) Set(name string, value any) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Get returns the value stored under name
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns field names in pattern order
func (r *Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Values returns values in pattern order
func (r *Record) Values() []any {
	out := make([]any, len(r.names))
	for i, name := range r.names {
		out[i] = r.values[name]
	}
	return out
}

// Len returns the number of fields
func (r *Record) Len() int {
	return len(r.names)
}

// Map returns a copy of the record as a plain map
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Columns is a column-oriented view over many records: each field name
// maps to that field's values in record order
type Columns struct {
	names  []string
	values map[string][]any
	rows   int
}

// NewColumns creates empty columns for the given field names
func NewColumns(names []string) *Columns {
	c := &Columns{
		names:  make([]string, len(names)),
		values: make(map[string][]any, len(names)),
	}
	copy(c.names, names)
	for _, name := range names {
		c.values[name] = make([]any, 0)
	}
	return c
}

// Append adds one record to every column. Fields missing from the record
// are stored as nil so all columns keep the same length.
func (c *Columns) Append(r *Record) {
	for _, name := range c.names {
		v, _ := r.Get(name)
		c.values[name] = append(c.values[name], v)
	}
	c.rows++
}

// Names returns column names in pattern order
func (c *Columns) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Get returns the values of one column
func (c *Columns) Get(name string) ([]any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Len returns the number of records collected
func (c *Columns) Len() int {
	return c.rows
}

// Map returns the columns as a plain map
func (c *Columns) Map() map[string][]any {
	out := make(map[string][]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

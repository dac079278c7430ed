package fileparser

import (
	"log/slog"

	"github.com/dshills/tabparse/pkg/pattern"
	"github.com/dshills/tabparse/pkg/registry"
)

// ErrorPolicy decides what Collect does with a line that fails to decode
type ErrorPolicy int

const (
	// Abort stops Collect at the first bad line and returns its error
	Abort ErrorPolicy = iota
	// Skip drops bad lines and records them in Skipped
	Skip
)

// DefaultCommentPrefix marks comment lines unless overridden
const DefaultCommentPrefix = "#"

// Option configures a Parser
type Option func(*options)

type options struct {
	separator     rune
	hasHeader     bool
	commentPrefix string
	registry      *registry.Registry
	converters    []registry.Entry
	compiled      *pattern.Compiled
	skipBlank     bool
	policy        ErrorPolicy
	logger        *slog.Logger
}

func defaultOptions() options {
	return options{
		separator:     pattern.DefaultSeparator,
		commentPrefix: DefaultCommentPrefix,
		policy:        Abort,
	}
}

// WithSeparator sets the global separator (default tab)
func WithSeparator(sep rune) Option {
	return func(o *options) { o.separator = sep }
}

// WithHeader treats the first non-comment line as column names
func WithHeader(hasHeader bool) Option {
	return func(o *options) { o.hasHeader = hasHeader }
}

// WithCommentPrefix sets the comment prefix. An empty prefix disables
// comment handling.
func WithCommentPrefix(prefix string) Option {
	return func(o *options) { o.commentPrefix = prefix }
}

// WithRegistry compiles the pattern against reg instead of the default
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithConverters adds converters on top of the registry in use
func WithConverters(entries ...registry.Entry) Option {
	return func(o *options) { o.converters = append(o.converters, entries...) }
}

// WithCompiled uses an already compiled pattern. The pattern string passed
// to Open is ignored and the separator comes from the compiled pattern.
func WithCompiled(c *pattern.Compiled) Option {
	return func(o *options) { o.compiled = c }
}

// WithSkipBlank silently skips lines that are empty or whitespace only
func WithSkipBlank(skip bool) Option {
	return func(o *options) { o.skipBlank = skip }
}

// WithErrorPolicy sets how Collect handles lines that fail to decode
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(o *options) { o.policy = policy }
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ParsePolicy maps "abort" and "skip" to an ErrorPolicy
func ParsePolicy(s string) (ErrorPolicy, bool) {
	switch s {
	case "", "abort":
		return Abort, true
	case "skip":
		return Skip, true
	}
	return Abort, false
}

func (p ErrorPolicy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

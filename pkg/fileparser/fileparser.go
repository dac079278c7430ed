package fileparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/dshills/tabparse/pkg/decoder"
	"github.com/dshills/tabparse/pkg/pattern"
	"github.com/dshills/tabparse/pkg/registry"
	"github.com/dshills/tabparse/pkg/types"
)

// ErrClosed is returned by Next after Close
var ErrClosed = errors.New("file parser is closed")

// Parser presents a delimited text file as a forward-only sequence of
// records. It is not safe for concurrent use.
type Parser struct {
	path     string
	closer   io.Closer
	reader   *bufio.Reader
	compiled *pattern.Compiled
	opts     options
	logger   *slog.Logger

	comments []string
	header   []string
	skipped  []*types.DecodeError

	// first non-comment line read while consuming the preamble
	pending     string
	pendingLine int
	hasPending  bool

	line   int
	count  int
	closed bool
}

// Open opens path and compiles the line pattern src. It fails with a
// *types.IOError of kind ErrFileNotFound when path is missing or is a
// directory, and with a *types.PatternError when src does not compile.
// Leading comment lines and the optional header are consumed before Open
// returns.
func Open(path, src string, opts ...Option) (*Parser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, openError(path, err)
	}
	if info.IsDir() {
		return nil, &types.IOError{Kind: types.ErrFileNotFound, Path: path, Err: errors.New("is a directory")}
	}

	o := buildOptions(opts)
	compiled, err := compile(src, &o)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}

	p, err := newParser(path, file, file, compiled, o)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return p, nil
}

// NewReader is like Open but reads from r. name is used in errors and logs.
// Close does not close r.
func NewReader(name string, r io.Reader, src string, opts ...Option) (*Parser, error) {
	o := buildOptions(opts)
	compiled, err := compile(src, &o)
	if err != nil {
		return nil, err
	}
	return newParser(name, r, nil, compiled, o)
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

func compile(src string, o *options) (*pattern.Compiled, error) {
	if o.compiled != nil {
		o.separator = o.compiled.Separator()
		return o.compiled, nil
	}

	reg := o.registry
	if reg == nil {
		reg = registry.Default()
	}
	if len(o.converters) > 0 {
		reg = reg.With(o.converters...)
	}
	return pattern.Compile(src, o.separator, reg)
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &types.IOError{Kind: types.ErrFileNotFound, Path: path, Err: err}
	}
	return &types.IOError{Kind: types.ErrReadFailure, Path: path, Err: err}
}

func newParser(name string, r io.Reader, closer io.Closer, compiled *pattern.Compiled, o options) (*Parser, error) {
	p := &Parser{
		path:     name,
		closer:   closer,
		reader:   bufio.NewReader(r),
		compiled: compiled,
		opts:     o,
		logger:   o.logger.With("path", name),
	}

	if err := p.readPreamble(); err != nil {
		return nil, err
	}

	p.logger.Debug("opened",
		"pattern", compiled.Source(),
		"fields", compiled.Len(),
		"comments", len(p.comments),
		"header", p.header != nil)
	return p, nil
}

// readPreamble buffers leading comments and reads the header if requested
func (p *Parser) readPreamble() error {
	for {
		line, err := p.readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if p.isComment(line) {
			p.comments = append(p.comments, decoder.TrimTerminator(line))
			continue
		}

		if p.opts.hasHeader {
			p.header = strings.Split(decoder.TrimTerminator(line), string(p.opts.separator))
			return nil
		}

		p.pending = line
		p.pendingLine = p.line
		p.hasPending = true
		return nil
	}
}

// readLine returns the next raw line including its terminator
func (p *Parser) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", &types.IOError{Kind: types.ErrReadFailure, Path: p.path, Err: err}
		}
		if line == "" {
			return "", io.EOF
		}
	}
	p.line++
	return line, nil
}

func (p *Parser) nextLine() (string, int, error) {
	if p.hasPending {
		p.hasPending = false
		return p.pending, p.pendingLine, nil
	}
	line, err := p.readLine()
	return line, p.line, err
}

func (p *Parser) isComment(line string) bool {
	return p.opts.commentPrefix != "" && strings.HasPrefix(line, p.opts.commentPrefix)
}

// Next decodes the next data line. It returns io.EOF at the end of the
// stream. A line that fails to decode yields a *types.DecodeError with Line
// set; the stream stays usable and the following call moves on.
func (p *Parser) Next() (*types.Record, error) {
	if p.closed {
		return nil, ErrClosed
	}

	for {
		line, lineNo, err := p.nextLine()
		if err != nil {
			return nil, err
		}

		if p.isComment(line) {
			p.comments = append(p.comments, decoder.TrimTerminator(line))
			continue
		}
		if p.opts.skipBlank && strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := decoder.Decode(p.compiled, line)
		if err != nil {
			var de *types.DecodeError
			if errors.As(err, &de) {
				de.Line = lineNo
			}
			return nil, err
		}
		p.count++
		return rec, nil
	}
}

// All returns an iterator over the remaining records. Decode errors are
// yielded alongside a nil record and iteration continues; it stops at the
// end of the stream, on a read failure, or when the parser is closed.
func (p *Parser) All() iter.Seq2[*types.Record, error] {
	return func(yield func(*types.Record, error) bool) {
		for {
			rec, err := p.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) {
				return
			}
			if err != nil && !errors.Is(err, types.ErrTypeMismatch) && !errors.Is(err, types.ErrSeparatorNotFound) {
				return
			}
		}
	}
}

// Collect drains the remaining records into columns keyed by field name.
// Under Abort the first decode error is returned; under Skip bad lines are
// dropped and listed by Skipped.
func (p *Parser) Collect() (*types.Columns, error) {
	cols := types.NewColumns(p.compiled.Names())

	for {
		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			return cols, nil
		}
		if err != nil {
			var de *types.DecodeError
			if p.opts.policy == Skip && errors.As(err, &de) {
				p.skipped = append(p.skipped, de)
				p.logger.Debug("skipped line", "line", de.Line, "error", de)
				continue
			}
			return nil, fmt.Errorf("failed to collect %s: %w", p.path, err)
		}
		cols.Append(rec)
	}
}

// Close releases the file. It is safe to call more than once.
func (p *Parser) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Comments returns the comment lines seen so far, without terminators
func (p *Parser) Comments() []string {
	out := make([]string, len(p.comments))
	copy(out, p.comments)
	return out
}

// Header returns the header columns, or nil when no header was read
func (p *Parser) Header() []string {
	if p.header == nil {
		return nil
	}
	out := make([]string, len(p.header))
	copy(out, p.header)
	return out
}

// Skipped returns the lines dropped by Collect under the Skip policy
func (p *Parser) Skipped() []*types.DecodeError {
	out := make([]*types.DecodeError, len(p.skipped))
	copy(out, p.skipped)
	return out
}

// Count returns the number of records decoded so far
func (p *Parser) Count() int {
	return p.count
}

// Line returns the number of lines read so far, comments and header included
func (p *Parser) Line() int {
	return p.line
}

// Compiled returns the compiled line pattern
func (p *Parser) Compiled() *pattern.Compiled {
	return p.compiled
}

// Path returns the file path or reader name
func (p *Parser) Path() string {
	return p.path
}

// Policy returns the Collect error policy
func (p *Parser) Policy() ErrorPolicy {
	return p.opts.policy
}

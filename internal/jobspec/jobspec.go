package jobspec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dshills/tabparse/pkg/fileparser"
	"github.com/dshills/tabparse/pkg/pattern"
)

var (
	// ErrUnsupportedFormat is returned for job files that are neither YAML nor TOML
	ErrUnsupportedFormat = errors.New("unsupported job file format")
	// ErrInvalidJob is returned when a job fails validation
	ErrInvalidJob = errors.New("invalid job")
)

// Format is a job file encoding
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	if f == FormatTOML {
		return "toml"
	}
	return "yaml"
}

// File is the top-level shape of a job file
type File struct {
	Jobs []Job `yaml:"jobs" toml:"jobs"`
}

// Job describes a set of files parsed with one line pattern
type Job struct {
	Name      string   `yaml:"name" toml:"name" json:"name"`
	Paths     []string `yaml:"paths" toml:"paths" json:"paths"` // Glob patterns
	Pattern   string   `yaml:"pattern" toml:"pattern" json:"pattern"`
	Separator string   `yaml:"separator" toml:"separator" json:"separator,omitempty"`
	HasHeader bool     `yaml:"has_header" toml:"has_header" json:"has_header,omitempty"`
	Comment   *string  `yaml:"comment" toml:"comment" json:"comment,omitempty"` // Nil keeps "#", "" disables
	SkipBlank bool     `yaml:"skip_blank" toml:"skip_blank" json:"skip_blank,omitempty"`
	OnError   string   `yaml:"on_error" toml:"on_error" json:"on_error,omitempty"` // abort or skip
}

// separatorWords are the spelled-out separators accepted in job files
var separatorWords = map[string]rune{
	"tab":       '\t',
	"comma":     ',',
	"space":     ' ',
	"pipe":      '|',
	"semicolon": ';',
	`\t`:        '\t',
}

// Load reads a job file, picking the decoder from the extension
func Load(path string) (*File, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	file, err := Parse(content, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file, nil
}

// DetectFormat maps .yaml, .yml and .toml to a Format
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Parse decodes and validates job file content
func Parse(content []byte, format Format) (*File, error) {
	var file File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(content), &file)
		if err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("TOML parse error: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks every job and rejects duplicate names
func (f *File) Validate() error {
	if len(f.Jobs) == 0 {
		return fmt.Errorf("%w: no jobs defined", ErrInvalidJob)
	}
	seen := make(map[string]bool, len(f.Jobs))
	for i := range f.Jobs {
		job := &f.Jobs[i]
		if err := job.Validate(); err != nil {
			return err
		}
		if seen[job.Name] {
			return fmt.Errorf("%w: duplicate job name %q", ErrInvalidJob, job.Name)
		}
		seen[job.Name] = true
	}
	return nil
}

// Job returns the job with the given name
func (f *File) Job(name string) (*Job, bool) {
	for i := range f.Jobs {
		if f.Jobs[i].Name == name {
			return &f.Jobs[i], true
		}
	}
	return nil, false
}

// Validate checks that the job is complete and its pattern compiles
func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidJob)
	}
	if len(j.Paths) == 0 {
		return fmt.Errorf("%w: job %q: paths are required", ErrInvalidJob, j.Name)
	}
	if j.Pattern == "" {
		return fmt.Errorf("%w: job %q: pattern is required", ErrInvalidJob, j.Name)
	}

	sep, err := j.SeparatorRune()
	if err != nil {
		return fmt.Errorf("%w: job %q: %v", ErrInvalidJob, j.Name, err)
	}
	if _, ok := fileparser.ParsePolicy(j.OnError); !ok {
		return fmt.Errorf("%w: job %q: on_error must be abort or skip, got %q", ErrInvalidJob, j.Name, j.OnError)
	}
	for _, p := range j.Paths {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("%w: job %q: bad glob %q: %v", ErrInvalidJob, j.Name, p, err)
		}
	}
	if _, err := pattern.Compile(j.Pattern, sep, nil); err != nil {
		return fmt.Errorf("%w: job %q: %w", ErrInvalidJob, j.Name, err)
	}
	return nil
}

// SeparatorRune resolves the separator setting. Empty means tab.
func (j *Job) SeparatorRune() (rune, error) {
	return ParseSeparator(j.Separator)
}

// ParseSeparator accepts a single character or one of the words tab,
// comma, space, pipe and semicolon. Empty means tab.
func ParseSeparator(s string) (rune, error) {
	if s == "" {
		return pattern.DefaultSeparator, nil
	}
	if r, ok := separatorWords[strings.ToLower(s)]; ok {
		return r, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("separator must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '\n' || r == '\r' {
		return 0, fmt.Errorf("separator cannot be a line terminator")
	}
	return r, nil
}

// Policy returns the job's decode error policy
func (j *Job) Policy() fileparser.ErrorPolicy {
	policy, _ := fileparser.ParsePolicy(j.OnError)
	return policy
}

// ParserOptions converts the job into file parser options
func (j *Job) ParserOptions() ([]fileparser.Option, error) {
	sep, err := j.SeparatorRune()
	if err != nil {
		return nil, err
	}
	opts := []fileparser.Option{
		fileparser.WithSeparator(sep),
		fileparser.WithHeader(j.HasHeader),
		fileparser.WithSkipBlank(j.SkipBlank),
		fileparser.WithErrorPolicy(j.Policy()),
	}
	if j.Comment != nil {
		opts = append(opts, fileparser.WithCommentPrefix(*j.Comment))
	}
	return opts, nil
}

// Files expands the job's globs into absolute, sorted, de-duplicated file
// paths. Directories are ignored.
func (j *Job) Files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range j.Paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %q: %w", p, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			if !seen[abs] {
				seen[abs] = true
				files = append(files, abs)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Owns reports whether path matches one of the job's globs
func (j *Job) Owns(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, p := range j.Paths {
		absPattern, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if ok, _ := filepath.Match(absPattern, abs); ok {
			return true
		}
	}
	return false
}

// Dirs returns the absolute directories holding the job's globs
func (j *Job) Dirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range j.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

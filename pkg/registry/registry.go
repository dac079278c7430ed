package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/tabparse/pkg/types"
)

// Built-in type names
const (
	TypeInt   = "int"
	TypeFloat = "float"
	TypeStr   = "str"
	TypeBool  = "bool"
)

// ErrNotFinite rejects NaN and infinite float fields
var ErrNotFinite = errors.New("float value is not finite")

// Converter is the function a type name resolves to
type Converter = types.Converter

// Entry is a caller-supplied (name, converter) pair
type Entry struct {
	Name    string
	Convert Converter
}

// Registry maps type names appearing in line patterns to converters
type Registry struct {
	mu         sync.RWMutex
	converters map[string]Converter
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// New creates a registry seeded with the built-in converters, then applies
// extra entries in order. Later entries shadow earlier ones and built-ins.
// Entries with an empty name or nil converter are ignored.
func New(extra ...Entry) *Registry {
	r := &Registry{
		converters: map[string]Converter{
			TypeInt:   convertInt,
			TypeFloat: convertFloat,
			TypeStr:   convertStr,
			TypeBool:  convertBool,
		},
	}
	for _, e := range extra {
		if e.Name == "" || e.Convert == nil {
			continue
		}
		r.converters[e.Name] = e.Convert
	}
	return r
}

// Default returns a shared registry holding only the built-ins
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// With returns a copy of the registry extended with extra entries.
// The receiver is left unchanged.
func (r *Registry) With(extra ...Entry) *Registry {
	r.mu.RLock()
	clone := &Registry{converters: make(map[string]Converter, len(r.converters)+len(extra))}
	for name, conv := range r.converters {
		clone.converters[name] = conv
	}
	r.mu.RUnlock()

	for _, e := range extra {
		if e.Name == "" || e.Convert == nil {
			continue
		}
		clone.converters[e.Name] = e.Convert
	}
	return clone
}

// Register adds or shadows a converter
func (r *Registry) Register(name string, conv Converter) error {
	if name == "" {
		return errors.New("type name cannot be empty")
	}
	if conv == nil {
		return fmt.Errorf("converter for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[name] = conv
	return nil
}

// Lookup resolves a type name. Unknown names yield an error wrapping
// types.ErrUnknownType.
func (r *Registry) Lookup(name string) (Converter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.converters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, name)
	}
	return conv, nil
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.converters[name]
	return ok
}

// Names returns the registered type names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.converters))
	for name := range r.converters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func convertInt(raw string) (any, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func convertFloat(raw string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, ErrNotFinite
	}
	return v, nil
}

func convertStr(raw string) (any, error) {
	return raw, nil
}

func convertBool(raw string) (any, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return v, nil
}

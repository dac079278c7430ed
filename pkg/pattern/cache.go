package pattern

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/tabparse/pkg/registry"
)

// DefaultCacheSize is used when NewCache is given a non-positive size
const DefaultCacheSize = 128

type cacheKey struct {
	source    string
	separator rune
}

// Cache keeps compiled patterns keyed by (pattern, separator) so a pattern
// shared by many files is compiled once. Failed compiles are not cached.
type Cache struct {
	registry *registry.Registry
	cache    *lru.Cache[cacheKey, *Compiled]
}

// NewCache creates a cache compiling against reg (nil means registry.Default())
func NewCache(size int, reg *registry.Registry) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if reg == nil {
		reg = registry.Default()
	}
	cache, err := lru.New[cacheKey, *Compiled](size)
	if err != nil {
		cache, _ = lru.New[cacheKey, *Compiled](DefaultCacheSize)
	}
	return &Cache{
		registry: reg,
		cache:    cache,
	}
}

// Get returns the compiled program for src, compiling it on a miss
func (c *Cache) Get(src string, sep rune) (*Compiled, error) {
	key := cacheKey{source: src, separator: sep}
	if compiled, ok := c.cache.Get(key); ok {
		return compiled, nil
	}

	compiled, err := Compile(src, sep, c.registry)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, compiled)
	return compiled, nil
}

// Registry returns the registry patterns are compiled against
func (c *Cache) Registry() *registry.Registry {
	return c.registry
}

// Len returns the number of cached programs
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Purge empties the cache
func (c *Cache) Purge() {
	c.cache.Purge()
}

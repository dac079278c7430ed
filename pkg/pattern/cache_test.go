package pattern

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tabparse/pkg/types"
)

func TestCache_ReusesCompiled(t *testing.T) {
	cache := NewCache(4, nil)

	first, err := cache.Get("$a:int|$b:str", '\t')
	require.NoError(t, err)
	second, err := cache.Get("$a:int|$b:str", '\t')
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_KeyIncludesSeparator(t *testing.T) {
	cache := NewCache(4, nil)

	tab, err := cache.Get("$a:int|$b:str", '\t')
	require.NoError(t, err)
	comma, err := cache.Get("$a:int|$b:str", ',')
	require.NoError(t, err)

	assert.NotSame(t, tab, comma)
	assert.Equal(t, []rune{','}, comma.Separators())
	assert.Equal(t, 2, cache.Len())
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	cache := NewCache(4, nil)

	_, err := cache.Get("$a:vroom", '\t')
	assert.ErrorIs(t, err, types.ErrUnknownType)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Evicts(t *testing.T) {
	cache := NewCache(2, nil)
	for _, p := range []string{"$a:int", "$b:int", "$c:int"} {
		_, err := cache.Get(p, '\t')
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCache_DefaultSize(t *testing.T) {
	cache := NewCache(0, nil)
	assert.NotNil(t, cache.Registry())
	_, err := cache.Get("$a:int", '\t')
	assert.NoError(t, err)
}

func TestCache_Concurrent(t *testing.T) {
	cache := NewCache(8, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := cache.Get("$a:int|$b:float", ',')
			assert.NoError(t, err)
			assert.Equal(t, 2, c.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Len())
}

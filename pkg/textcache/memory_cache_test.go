package textcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocKey(t *testing.T) {
	assert.Equal(t, "doc:s1:0", DocKey("s1", 0))
	assert.Equal(t, `doc:a\*b:*`, SessionPattern("a*b"))
}

func TestMemoryCacheSetGetMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)

	require.NoError(t, c.Set(ctx, DocKey("s1", 0), "hello", time.Hour))
	text, found, err := c.Get(ctx, DocKey("s1", 0))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", text)

	_, found, err = c.Get(ctx, DocKey("s1", 1))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, found, _ := c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCacheKeysBySessionPattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	require.NoError(t, c.SetMany(ctx, map[string]string{
		DocKey("s1", 0):  "a",
		DocKey("s1", 1):  "b",
		DocKey("s10", 0): "c",
		DocKey("s*", 0):  "d",
	}, time.Hour))

	keys, err := c.Keys(ctx, SessionPattern("s1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:s1:0", "doc:s1:1"}, keys)

	keys, err = c.Keys(ctx, SessionPattern("s*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:s*:0"}, keys)

	require.NoError(t, c.Delete(ctx, keys...))
	_, found, _ := c.Get(ctx, DocKey("s*", 0))
	assert.False(t, found)
}

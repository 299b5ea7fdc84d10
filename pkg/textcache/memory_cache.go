package textcache

import (
	"context"
	"path"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process backend, used when Redis is not configured and in tests.
type MemoryCache struct {
	cache *cache.Cache
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: cache.New(defaultTTL, 10*time.Minute),
	}
}

func (c *MemoryCache) Set(_ context.Context, key, text string, ttl time.Duration) error {
	c.cache.Set(key, text, ttl)
	return nil
}

func (c *MemoryCache) SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	for k, v := range entries {
		c.cache.Set(k, v, ttl)
	}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	x, found := c.cache.Get(key)
	if !found {
		return "", false, nil
	}
	return x.(string), true, nil
}

func (c *MemoryCache) Keys(_ context.Context, pattern string) ([]string, error) {
	var keys []string
	for k := range c.cache.Items() {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.cache.Delete(k)
	}
	return nil
}

// Package textcache stores the original text of every ingested chunk under
// "doc:{session}:{chunk_index}" so grounding text can be rebuilt without re-reading the source.
// A miss is not an error; it sends retrieval down to the next tier.
package textcache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL bounds how long chunk text stays cached after ingestion.
const DefaultTTL = 30 * 24 * time.Hour

// Cache is the key/value contract shared by the Redis and in-process backends.
type Cache interface {
	Set(ctx context.Context, key, text string, ttl time.Duration) error
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error
	// Get returns found=false on a miss.
	Get(ctx context.Context, key string) (text string, found bool, err error)
	// Keys lists keys matching a glob pattern (*, ?, [..] with \ escapes).
	Keys(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// DocKey builds the cache key of one chunk.
func DocKey(session string, chunkIndex int) string {
	return fmt.Sprintf("doc:%s:%d", session, chunkIndex)
}

// SessionPattern matches every chunk key of a session.
func SessionPattern(session string) string {
	return "doc:" + EscapeGlob(session) + ":*"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// EscapeGlob quotes glob metacharacters so s only matches itself.
func EscapeGlob(s string) string {
	return globEscaper.Replace(s)
}

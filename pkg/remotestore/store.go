// Package remotestore defines the durable vector database tier. Vectors live under the
// deterministic key "{session}_{chunk_index}" so they can be addressed without a lookup table.
package remotestore

import (
	"context"
	"fmt"
)

// Metadata keys written next to every remote vector.
const (
	MetaSession    = "session_id"
	MetaChunkIndex = "chunk_index"
	MetaText       = "text"
)

// Record is one vector to upsert.
type Record struct {
	ID         string
	Session    string
	ChunkIndex int
	Vector     []float32
	Text       string
}

// Match is one similarity query result. Distance is the L2 distance, smaller is closer.
type Match struct {
	ID         string
	Session    string
	ChunkIndex int
	Distance   float32
	Text       string
}

// Filter narrows a Query. An empty Session matches every session.
type Filter struct {
	Session string
}

// Store is the remote vector database contract.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	// Fetch returns the vectors of the ids that exist; absent ids are simply missing.
	Fetch(ctx context.Context, ids []string) (map[string][]float32, error)
	Delete(ctx context.Context, ids []string) error
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error)
}

// Key builds the deterministic remote id of a chunk.
func Key(session string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", session, chunkIndex)
}

// KeyRange returns the keys of chunks [from, to).
func KeyRange(session string, from, to int) []string {
	if to <= from {
		return nil
	}
	keys := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		keys = append(keys, Key(session, i))
	}
	return keys
}

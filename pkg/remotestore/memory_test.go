package remotestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "s1_3", Key("s1", 3))
	assert.Equal(t, []string{"s1_0", "s1_1"}, KeyRange("s1", 0, 2))
	assert.Nil(t, KeyRange("s1", 2, 2))
}

func TestMemoryStoreQueryFiltersBySession(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Upsert(ctx, []Record{
		{ID: Key("a", 0), Session: "a", ChunkIndex: 0, Vector: []float32{0, 0}, Text: "a0"},
		{ID: Key("a", 1), Session: "a", ChunkIndex: 1, Vector: []float32{5, 5}, Text: "a1"},
		{ID: Key("b", 0), Session: "b", ChunkIndex: 0, Vector: []float32{0, 0}, Text: "b0"},
	}))

	matches, err := m.Query(ctx, []float32{1, 1}, 3, Filter{Session: "a"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a0", matches[0].Text)
	assert.Equal(t, "a1", matches[1].Text)
}

func TestMemoryStoreFetchAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Upsert(ctx, []Record{{ID: "x_0", Session: "x", Vector: []float32{1}}}))

	got, err := m.Fetch(ctx, []string{"x_0", "x_1"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float32{"x_0": {1}}, got)

	require.NoError(t, m.Delete(ctx, []string{"x_0"}))
	assert.Equal(t, 0, m.Len())
	_, fetches, deletes, queries := m.Calls()
	assert.Equal(t, int64(1), fetches)
	assert.Equal(t, int64(1), deletes)
	assert.Equal(t, int64(0), queries)
}

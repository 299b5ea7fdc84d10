package remotestore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func pgStore(t *testing.T) *PgvectorStore {
	t.Helper()
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("DB_CONNECTION_STRING not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	s := NewPgvectorStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestPgvectorStoreRoundTrip(t *testing.T) {
	s := pgStore(t)
	ctx := context.Background()
	session := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = s.Delete(ctx, KeyRange(session, 0, 3)) })

	require.NoError(t, s.Upsert(ctx, []Record{
		{ID: Key(session, 0), Session: session, ChunkIndex: 0, Vector: []float32{0, 0, 1}, Text: "zero"},
		{ID: Key(session, 1), Session: session, ChunkIndex: 1, Vector: []float32{5, 5, 1}, Text: "one"},
	}))
	// Upserting an existing id replaces it.
	require.NoError(t, s.Upsert(ctx, []Record{
		{ID: Key(session, 1), Session: session, ChunkIndex: 1, Vector: []float32{1, 1, 1}, Text: "one again"},
	}))

	got, err := s.Fetch(ctx, KeyRange(session, 0, 3))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []float32{1, 1, 1}, got[Key(session, 1)])

	matches, err := s.Query(ctx, []float32{1, 1, 1}, 3, Filter{Session: session})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "one again", matches[0].Text)
	assert.Equal(t, 1, matches[0].ChunkIndex)

	require.NoError(t, s.Delete(ctx, []string{Key(session, 0)}))
	got, err = s.Fetch(ctx, []string{Key(session, 0)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

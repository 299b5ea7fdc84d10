package sessionmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndResolve(t *testing.T) {
	m := New("")
	require.NoError(t, m.Register("s1", []int64{4, 5, 6}))

	assert.True(t, m.Has("s1"))
	assert.False(t, m.Has("s2"))
	assert.Equal(t, []int64{4, 5, 6}, m.Get("s1"))

	loc, ok := m.Resolve(5)
	require.True(t, ok)
	assert.Equal(t, Location{Session: "s1", ChunkIndex: 1}, loc)

	e, ok := m.Entry("s1")
	require.True(t, ok)
	assert.Equal(t, 3, e.RemoteKeyCount)
}

func TestRegisterTwiceFails(t *testing.T) {
	m := New("")
	require.NoError(t, m.Register("s1", []int64{0}))
	assert.Error(t, m.Register("s1", []int64{1}))
	assert.Equal(t, []int64{0}, m.Get("s1"))
}

func TestUnregister(t *testing.T) {
	m := New("")
	require.NoError(t, m.Register("s1", []int64{0, 1}))

	ids, err := m.Unregister("s1")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, ids)
	assert.False(t, m.Has("s1"))
	_, ok := m.Resolve(0)
	assert.False(t, ok)

	ids, err = m.Unregister("missing")
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session_map.json")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Register("a", []int64{0, 1}))
	require.NoError(t, m.Register("b", []int64{2}))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reopened.Sessions())
	loc, ok := reopened.Resolve(2)
	require.True(t, ok)
	assert.Equal(t, "b", loc.Session)
}

func TestPruneDropsSessionsWithMissingIDs(t *testing.T) {
	m := New("")
	require.NoError(t, m.Register("a", []int64{0, 1}))
	require.NoError(t, m.Register("b", []int64{2}))

	dropped, err := m.Prune(func(id int64) bool { return id != 1 })
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, dropped)
	assert.False(t, m.Has("a"))
	assert.True(t, m.Has("b"))
}

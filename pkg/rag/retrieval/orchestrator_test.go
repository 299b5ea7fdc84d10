package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studymate-be/internal/testutil"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/textcache"
	"studymate-be/pkg/vectorstore"
)

var lecture = []string{
	"Chapter 1 introduces cells.",
	"Chapter 2 covers mitosis.",
	"Chapter 3 reviews genetics.",
	"Chapter 4 appendix.",
}

type env struct {
	store    *vectorstore.Store
	orch     *Orchestrator
	embedder *testutil.KeywordEmbedder
	loader   *testutil.StaticLoader
	cache    *textcache.MemoryCache
	remote   *remotestore.MemoryStore
	flaky    *testutil.FlakyRemote
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		embedder: testutil.NewKeywordEmbedder("chapter 1", "chapter 2", "chapter 3", "mitosis"),
		loader:   testutil.NewStaticLoader().Add("lecture.pdf", lecture...),
		cache:    textcache.NewMemoryCache(textcache.DefaultTTL),
		remote:   remotestore.NewMemoryStore(),
	}
	e.flaky = &testutil.FlakyRemote{Store: e.remote}

	cfg := vectorstore.DefaultConfig()
	cfg.Dimension = e.embedder.Dim()
	cfg.IndexPath = filepath.Join(dir, "index.bin")
	cfg.MapPath = filepath.Join(dir, "map.json")

	s, err := vectorstore.Open(cfg, vectorstore.Deps{
		Embedder: e.embedder,
		Cache:    e.cache,
		Remote:   e.flaky,
		Loader:   e.loader,
	})
	require.NoError(t, err)
	e.store = s
	e.orch = FromStore(s, e.loader, nil)

	_, err = s.StoreEmbeddings(context.Background(), "lecture.pdf", "s1")
	require.NoError(t, err)
	return e
}

func (e *env) coldCache(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	keys, err := e.cache.Keys(ctx, textcache.SessionPattern("s1"))
	require.NoError(t, err)
	require.NoError(t, e.cache.Delete(ctx, keys...))
}

func TestWarmLocalTierNeverContactsRemote(t *testing.T) {
	e := newEnv(t)
	_, _, _, queriesBefore := e.remote.Calls()
	_, fetchesBefore, _, _ := e.remote.Calls()

	res, err := e.orch.Retrieve(context.Background(), "s1", "explain chapter 2")
	require.NoError(t, err)
	assert.Equal(t, TierLocal, res.Tier)
	require.Len(t, res.Chunks, K)
	assert.Equal(t, lecture[1], res.Chunks[0])
	assert.Equal(t, lecture[1]+"\n\n"+res.Chunks[1]+"\n\n"+res.Chunks[2], res.Text)

	_, fetches, _, queries := e.remote.Calls()
	assert.Equal(t, queriesBefore, queries)
	assert.Equal(t, fetchesBefore, fetches)
}

func TestColdCacheFallsBackToRemoteMetadata(t *testing.T) {
	e := newEnv(t)
	e.coldCache(t)

	res, err := e.orch.Retrieve(context.Background(), "s1", "explain chapter 2")
	require.NoError(t, err)
	assert.Equal(t, TierRemote, res.Tier)
	require.NotEmpty(t, res.Chunks)
	assert.Equal(t, lecture[1], res.Chunks[0])
	assert.LessOrEqual(t, len(res.Chunks), K)

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "cache cold", res.Attempts[0].Reason)
}

func TestRemoteFailureFallsBackToSource(t *testing.T) {
	e := newEnv(t)
	e.coldCache(t)
	e.flaky.QueryErr = errors.New("remote down")

	res, err := e.orch.Retrieve(context.Background(), "s1", "explain chapter 2")
	require.NoError(t, err)
	assert.Equal(t, TierSource, res.Tier)
	assert.Equal(t, lecture[:K], res.Chunks)

	require.Len(t, res.Attempts, 3)
	assert.ErrorIs(t, res.Attempts[1].Err, apperr.ErrTierUnavailable)
}

func TestEmbedFailureSkipsVectorTiers(t *testing.T) {
	e := newEnv(t)
	e.embedder.Err = errors.New("provider down")

	res, err := e.orch.Retrieve(context.Background(), "s1", "anything")
	require.NoError(t, err)
	assert.Equal(t, TierSource, res.Tier)
	require.Len(t, res.Attempts, 3)
	assert.ErrorIs(t, res.Attempts[0].Err, apperr.ErrTierUnavailable)
	assert.ErrorIs(t, res.Attempts[0].Err, apperr.ErrProvider)
	assert.ErrorIs(t, res.Attempts[1].Err, apperr.ErrTierUnavailable)
}

func TestAllTiersEmptyYieldsPlaceholder(t *testing.T) {
	e := newEnv(t)

	res, err := e.orch.Retrieve(context.Background(), "unknown", "explain chapter 2")
	require.NoError(t, err)
	assert.True(t, res.IsPlaceholder())
	assert.Equal(t, Placeholder, res.Text)
}

func TestAllTiersFailingYieldsPlaceholder(t *testing.T) {
	e := newEnv(t)
	e.coldCache(t)
	e.flaky.QueryErr = errors.New("remote down")
	e.loader.Add("lecture.pdf")
	e.embedder.Err = errors.New("provider down")

	res, err := e.orch.Retrieve(context.Background(), "s1", "explain chapter 2")
	require.NoError(t, err)
	assert.Equal(t, TierPlaceholder, res.Tier)
	assert.Equal(t, Placeholder, res.Text)
}

func TestRetrieveRejectsInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.orch.Retrieve(ctx, "", "q")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = e.orch.Retrieve(ctx, "s1", "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	queries, _ := e.embedder.Calls()
	assert.Zero(t, queries)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "local", TierLocal.String())
	assert.Equal(t, "placeholder", TierPlaceholder.String())
	assert.Equal(t, "tier(9)", Tier(9).String())
}

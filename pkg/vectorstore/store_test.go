package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studymate-be/internal/testutil"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/embedding"
	"studymate-be/pkg/events"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/textcache"
)

var lecture = []string{
	"Chapter 1 introduces cells.",
	"Chapter 2 covers mitosis.",
	"Chapter 3 reviews genetics.",
}

type fixture struct {
	cfg      Config
	deps     Deps
	store    *Store
	embedder *testutil.KeywordEmbedder
	loader   *testutil.StaticLoader
	cache    *textcache.MemoryCache
	remote   *remotestore.MemoryStore
	flaky    *testutil.FlakyRemote
	sources  *MemorySourceRegistry
	events   *events.Recorder
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := &fixture{
		embedder: testutil.NewKeywordEmbedder("chapter 1", "chapter 2", "chapter 3", "mitosis"),
		loader:   testutil.NewStaticLoader().Add("lecture.pdf", lecture...),
		cache:    textcache.NewMemoryCache(textcache.DefaultTTL),
		remote:   remotestore.NewMemoryStore(),
		sources:  NewMemorySourceRegistry(),
		events:   &events.Recorder{},
	}
	f.flaky = &testutil.FlakyRemote{Store: f.remote}

	f.cfg = DefaultConfig()
	f.cfg.Dimension = f.embedder.Dim()
	f.cfg.IndexPath = filepath.Join(dir, "index.bin")
	f.cfg.MapPath = filepath.Join(dir, "session_map.json")
	for _, m := range mutate {
		m(&f.cfg)
	}

	f.deps = Deps{
		Embedder: f.embedder,
		Cache:    f.cache,
		Remote:   f.flaky,
		Loader:   f.loader,
		Sources:  f.sources,
		Events:   f.events,
	}
	f.reopen(t)
	return f
}

func (f *fixture) reopen(t *testing.T) {
	t.Helper()
	s, err := Open(f.cfg, f.deps)
	require.NoError(t, err)
	f.store = s
}

func (f *fixture) cachedKeys(t *testing.T, session string) []string {
	t.Helper()
	keys, err := f.cache.Keys(context.Background(), textcache.SessionPattern(session))
	require.NoError(t, err)
	return keys
}

func TestStoreEmbeddingsThreeChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyPresent)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, res.RemoteUpserted)
	assert.NoError(t, res.RemoteErr)

	stats := f.store.Stats()
	assert.Equal(t, 3, stats.Vectors)

	ids := f.store.LocalIDs("s1")
	require.Len(t, ids, 3)
	assert.Len(t, map[int64]bool{ids[0]: true, ids[1]: true, ids[2]: true}, 3)

	assert.Equal(t, []string{"doc:s1:0", "doc:s1:1", "doc:s1:2"}, f.cachedKeys(t, "s1"))
	text, ok, err := f.cache.Get(ctx, textcache.DocKey("s1", 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lecture[1], text)

	assert.Equal(t, 3, f.remote.Len())
	remoteText, ok := f.remote.Text(remotestore.Key("s1", 2))
	require.True(t, ok)
	assert.Equal(t, lecture[2], remoteText)

	src, ok, err := f.sources.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lecture.pdf", src)

	assert.Len(t, f.events.OfType(events.TypeSessionIngested), 1)
}

func TestStoreEmbeddingsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)

	res, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyPresent)

	_, documents := f.embedder.Calls()
	upserts, _, _, _ := f.remote.Calls()
	assert.Equal(t, 1, f.loader.Loads())
	assert.EqualValues(t, 1, documents)
	assert.EqualValues(t, 1, upserts)
	assert.Equal(t, 3, f.store.Stats().Vectors)
}

func TestStoreEmbeddingsConcurrentSameSession(t *testing.T) {
	f := newFixture(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.store.StoreEmbeddings(context.Background(), "lecture.pdf", "s1")
			assert.NoError(t, err)
			if !res.AlreadyPresent {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assert.Equal(t, 3, f.store.Stats().Vectors)
}

func TestStoreEmbeddingsRejectsInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.store.StoreEmbeddings(ctx, "", "s1")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Zero(t, f.loader.Loads())

	_, err = f.store.StoreEmbeddings(ctx, "virus.exe", "s1")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFormat)
	assert.Empty(t, f.store.Stats().Sessions)
}

func TestStoreEmbeddingsProviderFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.embedder.Err = errors.New("quota exceeded")

	_, err := f.store.StoreEmbeddings(context.Background(), "lecture.pdf", "s1")
	assert.ErrorIs(t, err, apperr.ErrProvider)

	assert.Zero(t, f.store.Stats().Vectors)
	assert.Empty(t, f.cachedKeys(t, "s1"))
	assert.Zero(t, f.remote.Len())
	has, err := f.store.HasEmbeddings(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStoreEmbeddingsDimensionMismatch(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Dimension = 8 })

	_, err := f.store.StoreEmbeddings(context.Background(), "lecture.pdf", "s1")
	assert.ErrorIs(t, err, apperr.ErrProvider)
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)
	assert.Zero(t, f.store.Stats().Vectors)
}

func TestStoreEmbeddingsRemoteFailureKeepsLocalTier(t *testing.T) {
	f := newFixture(t)
	f.loader.Add("notes.md", lecture...)
	f.flaky.UpsertErr = errors.New("remote unavailable")
	ctx := context.Background()

	res, err := f.store.StoreEmbeddings(ctx, "notes.md", "s2")
	require.NoError(t, err)
	assert.Error(t, res.RemoteErr)
	assert.Zero(t, res.RemoteUpserted)

	assert.Equal(t, 3, f.store.Stats().Vectors)
	assert.Len(t, f.cachedKeys(t, "s2"), 3)
	has, err := f.store.HasEmbeddings(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, has)

	failed := f.events.OfType(events.TypeRemoteUpsertFailed)
	require.Len(t, failed, 1)
	id, _ := events.SessionID(failed[0])
	assert.Equal(t, "s2", id)
}

func TestStoreEmbeddingsBatchesAndTruncatesRemote(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.UpsertBatchSize = 2
		c.RemoteTextMax = 9
	})
	f.loader.Add("long.txt", "chapter 1 a", "chapter 1 b", "chapter 2 c", "chapter 2 d", "chapter 3 e")

	res, err := f.store.StoreEmbeddings(context.Background(), "long.txt", "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, res.RemoteUpserted)

	upserts, _, _, _ := f.remote.Calls()
	assert.EqualValues(t, 3, upserts)

	text, ok := f.remote.Text("s1_4")
	require.True(t, ok)
	assert.Equal(t, "chapter 3", text)

	cached, _, err := f.cache.Get(context.Background(), "doc:s1:4")
	require.NoError(t, err)
	assert.Equal(t, "chapter 3 e", cached)
}

func TestHasEmbeddings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	has, err := f.store.HasEmbeddings(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = f.store.HasEmbeddings(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	require.NoError(t, f.remote.Upsert(ctx, []remotestore.Record{{
		ID: remotestore.Key("elsewhere", 0), Session: "elsewhere", Vector: make([]float32, f.cfg.Dimension),
	}}))
	has, err = f.store.HasEmbeddings(ctx, "elsewhere")
	require.NoError(t, err)
	assert.True(t, has)

	f.flaky.FetchErr = errors.New("timeout")
	_, err = f.store.HasEmbeddings(ctx, "other")
	assert.ErrorIs(t, err, apperr.ErrTierUnavailable)
}

func TestHasEmbeddingsLocalHitSkipsRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)

	f.flaky.FetchErr = errors.New("must not be called")
	has, err := f.store.HasEmbeddings(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestDeleteSessionIsTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loader.Add("other.pdf", "chapter 3 only")

	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)
	_, err = f.store.StoreEmbeddings(ctx, "other.pdf", "s3")
	require.NoError(t, err)

	report, err := f.store.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 3, report.Cache.Removed)
	assert.Equal(t, 3, report.Local.Removed)

	has, err := f.store.HasEmbeddings(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, has)
	assert.Empty(t, f.cachedKeys(t, "s1"))
	_, ok, _ := f.sources.Get(ctx, "s1")
	assert.False(t, ok)

	assert.Equal(t, 1, f.store.Stats().Vectors)
	assert.Equal(t, 1, f.remote.Len())
	assert.Len(t, f.cachedKeys(t, "s3"), 1)
	assert.Len(t, f.events.OfType(events.TypeSessionPurged), 1)
}

func TestDeleteSessionToleratesTierFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)

	f.flaky.DeleteErr = errors.New("remote down")
	report, err := f.store.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, report.Complete())
	assert.Error(t, report.Remote.Err)
	assert.NoError(t, report.Local.Err)
	assert.Equal(t, 3, report.Local.Removed)
	assert.Empty(t, f.cachedKeys(t, "s1"))
	assert.Nil(t, f.store.LocalIDs("s1"))
}

func TestDeleteSessionUnknownProbesRemoteRange(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ProbeRange = 5 })
	ctx := context.Background()
	require.NoError(t, f.remote.Upsert(ctx, []remotestore.Record{
		{ID: "ghost_0", Session: "ghost", Vector: make([]float32, f.cfg.Dimension)},
		{ID: "ghost_4", Session: "ghost", ChunkIndex: 4, Vector: make([]float32, f.cfg.Dimension)},
	}))

	report, err := f.store.DeleteSession(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 5, report.Remote.Removed)
	assert.Zero(t, f.remote.Len())

	_, err = f.store.DeleteSession(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestLocalIDsStayUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		f.loader.Add(fmt.Sprintf("doc%d.txt", i), lecture...)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.store.StoreEmbeddings(ctx, fmt.Sprintf("doc%d.txt", i), fmt.Sprintf("s%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_, err := f.store.DeleteSession(ctx, "s0")
	require.NoError(t, err)
	_, err = f.store.StoreEmbeddings(ctx, "doc0.txt", "s0")
	require.NoError(t, err)

	stats := f.store.Stats()
	seen := make(map[int64]string)
	for _, s := range stats.Sessions {
		for _, id := range f.store.LocalIDs(s) {
			owner, dup := seen[id]
			assert.False(t, dup, "id %d owned by %s and %s", id, owner, s)
			assert.Less(t, id, stats.NextID)
			seen[id] = s
		}
	}
	assert.Len(t, seen, 18)
	assert.Equal(t, 18, stats.Vectors)
	assert.EqualValues(t, 21, stats.NextID)
}

func TestReopenRestoresLocalTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)
	ids := f.store.LocalIDs("s1")

	f.reopen(t)
	assert.Equal(t, ids, f.store.LocalIDs("s1"))
	assert.Equal(t, 3, f.store.Stats().Vectors)

	hits, err := f.store.SearchSession("s1", f.embedder.Vector("chapter 2"), 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 1, hits[0].ChunkIndex)
}

func TestOpenPrunesEntriesWithoutVectors(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.StoreEmbeddings(context.Background(), "lecture.pdf", "s1")
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.cfg.IndexPath))
	f.reopen(t)

	assert.Nil(t, f.store.LocalIDs("s1"))
	assert.Empty(t, f.store.Stats().Sessions)
}

func TestSearchSessionIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loader.Add("mitosis.txt", "chapter 2 mitosis mitosis", "chapter 2 again")

	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)
	_, err = f.store.StoreEmbeddings(ctx, "mitosis.txt", "s3")
	require.NoError(t, err)

	hits, err := f.store.SearchSession("s1", f.embedder.Vector("explain chapter 2"), 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{1, 0, 2}, []int{hits[0].ChunkIndex, hits[1].ChunkIndex, hits[2].ChunkIndex})

	s1 := map[int64]bool{}
	for _, id := range f.store.LocalIDs("s1") {
		s1[id] = true
	}
	for _, h := range hits {
		assert.True(t, s1[h.LocalID])
	}

	none, err := f.store.SearchSession("missing", f.embedder.Vector("x"), 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLoadEmbeddings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)

	vectors, err := f.store.LoadEmbeddings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, f.embedder.Vector(lecture[1]), vectors[1])

	_, err = f.store.LoadEmbeddings(ctx, "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLoadEmbeddingsPullsFromRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.remote.Upsert(ctx, []remotestore.Record{
		{ID: "s9_0", Session: "s9", ChunkIndex: 0, Vector: f.embedder.Vector("chapter 1"), Text: "chapter 1"},
		{ID: "s9_1", Session: "s9", ChunkIndex: 1, Vector: f.embedder.Vector("chapter 3"), Text: "chapter 3"},
	}))

	vectors, err := f.store.LoadEmbeddings(ctx, "s9")
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, f.store.LocalIDs("s9"), 2)

	_, fetchesBefore, _, _ := f.remote.Calls()
	_, err = f.store.LoadEmbeddings(ctx, "s9")
	require.NoError(t, err)
	_, fetchesAfter, _, _ := f.remote.Calls()
	assert.Equal(t, fetchesBefore, fetchesAfter)
}

func TestReconcileRepairsRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.flaky.UpsertErr = errors.New("remote unavailable")
	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s2")
	require.NoError(t, err)
	f.flaky.UpsertErr = nil

	report, err := f.store.Reconcile(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, []int{0, 1, 2}, report.MissingRemote)
	assert.Equal(t, []int{0, 1, 2}, report.Repaired)
	assert.NoError(t, report.RepairErr)
	assert.Equal(t, 3, f.remote.Len())

	report, err = f.store.Reconcile(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	_, err = f.store.Reconcile(ctx, "unknown")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReconcileReportsColdCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.StoreEmbeddings(ctx, "lecture.pdf", "s1")
	require.NoError(t, err)
	require.NoError(t, f.cache.Delete(ctx, "doc:s1:0"))

	report, err := f.store.Reconcile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, report.MissingCache)
	assert.Empty(t, report.MissingRemote)
}

func TestOpenValidates(t *testing.T) {
	_, err := Open(Config{Dimension: 0}, Deps{})
	assert.Error(t, err)
	_, err = Open(Config{Dimension: 3}, Deps{})
	assert.Error(t, err)
}

// Package vectorstore is the session vector store: a local flat index, the session id map,
// the document text cache and the remote vector database, kept as an eventually consistent
// tiered cache. The local index and map are the source of truth on this node.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"studymate-be/internal/pkg/logger"
	"studymate-be/pkg/embedding"
	"studymate-be/pkg/events"
	"studymate-be/pkg/keylock"
	"studymate-be/pkg/loader"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/sessionmap"
	"studymate-be/pkg/textcache"
	"studymate-be/pkg/vectorindex"
)

const module = "VECTOR_STORE"

type Config struct {
	Dimension       int
	IndexPath       string
	MapPath         string
	CacheTTL        time.Duration
	UpsertBatchSize int
	RemoteTextMax   int
	// ProbeRange bounds remote key scans when the chunk count of a session is unknown.
	ProbeRange    int
	EmbedTimeout  time.Duration
	RemoteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Dimension:       768,
		CacheTTL:        textcache.DefaultTTL,
		UpsertBatchSize: 100,
		RemoteTextMax:   1000,
		ProbeRange:      1000,
		EmbedTimeout:    60 * time.Second,
		RemoteTimeout:   15 * time.Second,
	}
}

// ChunkLoader extracts and chunks a source reference.
type ChunkLoader interface {
	Load(ctx context.Context, source string) ([]loader.Chunk, error)
}

type Deps struct {
	Embedder embedding.EmbeddingProvider
	Cache    textcache.Cache
	Remote   remotestore.Store
	Loader   ChunkLoader
	Sources  SourceRegistry
	Events   events.Publisher
	Logger   logger.ILogger
}

type Store struct {
	cfg      Config
	index    *vectorindex.FlatIndex
	ids      *sessionmap.Map
	embedder embedding.EmbeddingProvider
	cache    textcache.Cache
	remote   remotestore.Store
	loader   ChunkLoader
	sources  SourceRegistry
	events   events.Publisher
	logger   logger.ILogger

	// mu guards the index+map pair: mutations and their persistence take it exclusively.
	mu       sync.RWMutex
	sessions *keylock.Locker
}

// Open loads (or creates) the local index and session map and repairs any map entries that
// point at ids missing from the index.
func Open(cfg Config, deps Deps) (*Store, error) {
	if cfg.Dimension <= 0 {
		return nil, errors.New("vector dimension must be positive")
	}
	if deps.Embedder == nil || deps.Cache == nil || deps.Remote == nil || deps.Loader == nil {
		return nil, errors.New("vector store needs an embedder, cache, remote store and loader")
	}
	if deps.Sources == nil {
		deps.Sources = NewMemorySourceRegistry()
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = 100
	}
	if cfg.ProbeRange <= 0 {
		cfg.ProbeRange = 1000
	}

	index, err := vectorindex.Open(cfg.Dimension, cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open local index: %w", err)
	}
	ids, err := sessionmap.Open(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("open session map: %w", err)
	}

	s := &Store{
		cfg:      cfg,
		index:    index,
		ids:      ids,
		embedder: embedding.WithDimension(deps.Embedder, cfg.Dimension),
		cache:    deps.Cache,
		remote:   deps.Remote,
		loader:   deps.Loader,
		sources:  deps.Sources,
		events:   deps.Events,
		logger:   deps.Logger,
		sessions: keylock.New(),
	}

	dropped, err := ids.Prune(index.Contains)
	if err != nil {
		return nil, fmt.Errorf("repair session map: %w", err)
	}
	if len(dropped) > 0 {
		s.logger.Warn(module, "Dropped session map entries with missing vectors", map[string]interface{}{
			"sessions": dropped,
		})
	}

	s.logger.Info(module, "Vector store opened", map[string]interface{}{
		"dimension": cfg.Dimension,
		"vectors":   index.Ntotal(),
		"sessions":  len(ids.Sessions()),
	})
	return s, nil
}

// Embedder is the dimension-checked provider the store embeds with.
func (s *Store) Embedder() embedding.EmbeddingProvider { return s.embedder }

func (s *Store) Cache() textcache.Cache { return s.cache }

func (s *Store) Remote() remotestore.Store { return s.remote }

func (s *Store) Sources() SourceRegistry { return s.sources }

// Stats is a point-in-time view of the local tier.
type Stats struct {
	Vectors  int
	NextID   int64
	Sessions []string
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Vectors:  s.index.Ntotal(),
		NextID:   s.index.NextID(),
		Sessions: s.ids.Sessions(),
	}
}

// LocalIDs returns the registered local ids of session, nil when unknown.
func (s *Store) LocalIDs(session string) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids.Get(session)
}

// ChunkHit is a local search result resolved to its chunk.
type ChunkHit struct {
	LocalID    int64
	ChunkIndex int
	Distance   float32
}

// SearchSession runs a k-nearest search limited to the vectors of session. Empty slots are
// dropped, so fewer than k hits come back when the session is small.
func (s *Store) SearchSession(session string, query []float32, k int) ([]ChunkHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ids.Get(session)
	if len(owned) == 0 {
		return nil, nil
	}
	allow := make(map[int64]bool, len(owned))
	for _, id := range owned {
		allow[id] = true
	}

	hits, err := s.index.SearchFiltered(query, k, func(id int64) bool { return allow[id] })
	if err != nil {
		return nil, err
	}
	out := make([]ChunkHit, 0, len(hits))
	for _, h := range hits {
		if h.ID == vectorindex.NoID {
			continue
		}
		loc, ok := s.ids.Resolve(h.ID)
		if !ok || loc.Session != session {
			continue
		}
		out = append(out, ChunkHit{LocalID: h.ID, ChunkIndex: loc.ChunkIndex, Distance: h.Distance})
	}
	return out, nil
}

func (s *Store) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.remoteTimeout())
	defer cancel()
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn(module, "Failed to publish event", map[string]interface{}{
			"type":  e.EventType(),
			"error": err.Error(),
		})
	}
}

func (s *Store) remoteTimeout() time.Duration {
	if s.cfg.RemoteTimeout <= 0 {
		return 15 * time.Second
	}
	return s.cfg.RemoteTimeout
}

func (s *Store) embedTimeout() time.Duration {
	if s.cfg.EmbedTimeout <= 0 {
		return 60 * time.Second
	}
	return s.cfg.EmbedTimeout
}

func (s *Store) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.remoteTimeout())
}

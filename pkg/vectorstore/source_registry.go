package vectorstore

import (
	"context"
	"sync"
)

// SourceRegistry durably records which source document a session was ingested from. It
// feeds the source-document retrieval tier.
type SourceRegistry interface {
	Put(ctx context.Context, session, source string) error
	Get(ctx context.Context, session string) (source string, found bool, err error)
	Delete(ctx context.Context, session string) error
}

type MemorySourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]string
}

func NewMemorySourceRegistry() *MemorySourceRegistry {
	return &MemorySourceRegistry{sources: make(map[string]string)}
}

func (r *MemorySourceRegistry) Put(_ context.Context, session, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[session] = source
	return nil
}

func (r *MemorySourceRegistry) Get(_ context.Context, session string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[session]
	return src, ok, nil
}

func (r *MemorySourceRegistry) Delete(_ context.Context, session string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, session)
	return nil
}

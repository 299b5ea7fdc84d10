package remotestore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"studymate-be/pkg/vectorindex"
)

// MemoryStore is an in-process Store for development and tests. It counts calls so callers
// can assert which tiers were contacted.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string

	upserts atomic.Int64
	fetches atomic.Int64
	deletes atomic.Int64
	queries atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Upsert(_ context.Context, records []Record) error {
	m.upserts.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, exists := m.records[r.ID]; !exists {
			m.order = append(m.order, r.ID)
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) Fetch(_ context.Context, ids []string) (map[string][]float32, error) {
	m.fetches.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]float32)
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out[id] = append([]float32(nil), r.Vector...)
		}
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, ids []string) error {
	m.deletes.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.records[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

func (m *MemoryStore) Query(_ context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	m.queries.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []Match
	for _, id := range m.order {
		r := m.records[id]
		if filter.Session != "" && r.Session != filter.Session {
			continue
		}
		if len(r.Vector) != len(vector) {
			continue
		}
		matches = append(matches, Match{
			ID:         r.ID,
			Session:    r.Session,
			ChunkIndex: r.ChunkIndex,
			Distance:   vectorindex.L2Squared(vector, r.Vector),
			Text:       r.Text,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored vectors.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Text returns the stored metadata text of id.
func (m *MemoryStore) Text(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r.Text, ok
}

// Calls reports how many times each operation ran.
func (m *MemoryStore) Calls() (upserts, fetches, deletes, queries int64) {
	return m.upserts.Load(), m.fetches.Load(), m.deletes.Load(), m.queries.Load()
}

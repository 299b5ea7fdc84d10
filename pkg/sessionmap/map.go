// Package sessionmap keeps the durable session -> local index id mapping. It is the source of
// truth for whether a session has embeddings on this node.
package sessionmap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"studymate-be/pkg/fileutil"
)

// Entry is the registration of one session. LocalIDs[i] holds the vector of chunk i.
type Entry struct {
	LocalIDs       []int64   `json:"local_ids"`
	RemoteKeyCount int       `json:"remote_key_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Location identifies a chunk by its owning session and position.
type Location struct {
	Session    string
	ChunkIndex int
}

// Map is persisted as one JSON document after every mutation.
type Map struct {
	path    string
	entries map[string]*Entry
	reverse map[int64]Location
	mu      sync.RWMutex
}

// New returns an empty map. An empty path disables persistence.
func New(path string) *Map {
	return &Map{
		path:    path,
		entries: make(map[string]*Entry),
		reverse: make(map[int64]Location),
	}
}

// Open loads the map stored at path; a missing file yields an empty map.
func Open(path string) (*Map, error) {
	m := New(path)
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read session map: %w", err)
	}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return nil, fmt.Errorf("decode session map: %w", err)
	}
	if m.entries == nil {
		m.entries = make(map[string]*Entry)
	}
	m.rebuildReverse()
	return m, nil
}

func (m *Map) rebuildReverse() {
	m.reverse = make(map[int64]Location)
	for session, e := range m.entries {
		for i, id := range e.LocalIDs {
			m.reverse[id] = Location{Session: session, ChunkIndex: i}
		}
	}
}

// Register records the ids of a freshly ingested session and persists the map.
func (m *Map) Register(session string, localIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[session]; exists {
		return fmt.Errorf("session %s is already registered", session)
	}
	ids := make([]int64, len(localIDs))
	copy(ids, localIDs)
	m.entries[session] = &Entry{
		LocalIDs:       ids,
		RemoteKeyCount: len(ids),
		CreatedAt:      time.Now().UTC(),
	}
	for i, id := range ids {
		m.reverse[id] = Location{Session: session, ChunkIndex: i}
	}
	if err := m.save(); err != nil {
		delete(m.entries, session)
		for _, id := range ids {
			delete(m.reverse, id)
		}
		return err
	}
	return nil
}

// Unregister removes a session and returns the ids it owned.
func (m *Map) Unregister(session string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[session]
	if !ok {
		return nil, nil
	}
	delete(m.entries, session)
	if err := m.save(); err != nil {
		m.entries[session] = e
		return nil, err
	}
	for _, id := range e.LocalIDs {
		delete(m.reverse, id)
	}
	return e.LocalIDs, nil
}

// Has reports whether the session is registered.
func (m *Map) Has(session string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[session]
	return ok
}

// Get returns a copy of the session's local ids, or nil when unknown.
func (m *Map) Get(session string) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[session]
	if !ok {
		return nil
	}
	out := make([]int64, len(e.LocalIDs))
	copy(out, e.LocalIDs)
	return out
}

// Entry returns a copy of the full registration.
func (m *Map) Entry(session string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[session]
	if !ok {
		return Entry{}, false
	}
	cp := *e
	cp.LocalIDs = append([]int64(nil), e.LocalIDs...)
	return cp, true
}

// Resolve maps a local id back to its session and chunk index.
func (m *Map) Resolve(localID int64) (Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.reverse[localID]
	return loc, ok
}

// Sessions lists the registered sessions in lexical order.
func (m *Map) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for s := range m.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Prune drops every session owning an id that keep rejects. Used on startup to repair a map
// that got ahead of the index. Returns the dropped sessions.
func (m *Map) Prune(keep func(int64) bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dropped []string
	for session, e := range m.entries {
		for _, id := range e.LocalIDs {
			if !keep(id) {
				dropped = append(dropped, session)
				break
			}
		}
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	for _, s := range dropped {
		delete(m.entries, s)
	}
	m.rebuildReverse()
	sort.Strings(dropped)
	return dropped, m.save()
}

func (m *Map) save() error {
	if m.path == "" {
		return nil
	}
	return fileutil.WriteAtomic(m.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m.entries)
	})
}

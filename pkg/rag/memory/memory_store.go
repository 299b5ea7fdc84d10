package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"studymate-be/pkg/keylock"
)

// MemoryStore is the in-process backend on go-cache. Appends for one key are serialized.
type MemoryStore struct {
	cache    *cache.Cache
	locks    *keylock.Locker
	capacity int
	ttl      time.Duration
}

func NewMemoryStore(maxHistory int, ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache:    cache.New(ttl, 10*time.Minute),
		locks:    keylock.New(),
		capacity: Capacity(maxHistory),
		ttl:      ttl,
	}
}

func (m *MemoryStore) Load(_ context.Context, user, session string) ([]ChatTurn, error) {
	x, found := m.cache.Get(Key(user, session))
	if !found {
		return []ChatTurn{}, nil
	}
	turns := x.([]ChatTurn)
	out := make([]ChatTurn, len(turns))
	copy(out, turns)
	return tail(out, m.capacity), nil
}

func (m *MemoryStore) Append(ctx context.Context, user, session string, turns ...ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := Key(user, session)
	unlock := m.locks.Lock(key)
	defer unlock()

	var current []ChatTurn
	if x, found := m.cache.Get(key); found {
		current = x.([]ChatTurn)
	}
	next := make([]ChatTurn, 0, len(current)+len(turns))
	next = append(next, current...)
	next = append(next, turns...)
	m.cache.Set(key, tail(next, m.capacity), m.ttl)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, user, session string) error {
	m.cache.Delete(Key(user, session))
	return nil
}

// ExpiresAt returns when the conversation expires, for TTL checks.
func (m *MemoryStore) ExpiresAt(user, session string) (time.Time, bool) {
	_, exp, found := m.cache.GetWithExpiration(Key(user, session))
	return exp, found
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each conversation as a Redis list. Append runs RPUSH, LTRIM and EXPIRE in
// one MULTI/EXEC so a turn pair is never half written and the cap and TTL always hold.
type RedisStore struct {
	rdb      redis.UniversalClient
	capacity int
	ttl      time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, maxHistory int, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, capacity: Capacity(maxHistory), ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, user, session string) ([]ChatTurn, error) {
	raw, err := r.rdb.LRange(ctx, Key(user, session), int64(-r.capacity), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	turns := make([]ChatTurn, 0, len(raw))
	for _, item := range raw {
		var t ChatTurn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode chat turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *RedisStore) Append(ctx context.Context, user, session string, turns ...ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, len(turns))
	for i, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode chat turn: %w", err)
		}
		values[i] = b
	}

	key := Key(user, session)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-r.capacity), -1)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append chat history: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, user, session string) error {
	return r.rdb.Del(ctx, Key(user, session)).Err()
}

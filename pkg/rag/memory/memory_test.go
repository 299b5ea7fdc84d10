package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studymate-be/pkg/llm"
)

func turn(role Role, i int) ChatTurn {
	return ChatTurn{Role: role, Content: fmt.Sprintf("turn %d", i), TS: time.Unix(int64(i), 0).UTC()}
}

func exerciseBoundedHistory(t *testing.T, s Store, maxHistory int) {
	t.Helper()
	ctx := context.Background()
	user, session := "u1", fmt.Sprintf("bounded-%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = s.Clear(ctx, user, session) })

	total := 2*maxHistory + 1
	for i := 0; i < total; i++ {
		role := RoleHuman
		if i%2 == 1 {
			role = RoleAssistant
		}
		require.NoError(t, s.Append(ctx, user, session, turn(role, i)))
	}

	got, err := s.Load(ctx, user, session)
	require.NoError(t, err)
	require.Len(t, got, 2*maxHistory)
	assert.Equal(t, "turn 1", got[0].Content)
	assert.Equal(t, fmt.Sprintf("turn %d", total-1), got[len(got)-1].Content)
}

func TestMemoryStoreBoundedHistory(t *testing.T) {
	exerciseBoundedHistory(t, NewMemoryStore(DefaultMaxHistory, DefaultTTL), DefaultMaxHistory)
}

func TestMemoryStorePairAppendKeepsOrder(t *testing.T) {
	s := NewMemoryStore(2, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "u", "s", turn(RoleHuman, 0), turn(RoleAssistant, 1)))
	require.NoError(t, s.Append(ctx, "u", "s", turn(RoleHuman, 2), turn(RoleAssistant, 3)))
	require.NoError(t, s.Append(ctx, "u", "s", turn(RoleHuman, 4), turn(RoleAssistant, 5)))

	got, err := s.Load(ctx, "u", "s")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, RoleHuman, got[0].Role)
	assert.Equal(t, "turn 2", got[0].Content)
	assert.Equal(t, "turn 5", got[3].Content)

	other, err := s.Load(ctx, "u", "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryStoreConcurrentAppendsDoNotOverwrite(t *testing.T) {
	s := NewMemoryStore(50, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, "u", "s", turn(RoleHuman, i)))
		}(i)
	}
	wg.Wait()

	got, err := s.Load(ctx, "u", "s")
	require.NoError(t, err)
	assert.Len(t, got, 40)
}

func TestMemoryStoreRefreshesTTL(t *testing.T) {
	s := NewMemoryStore(DefaultMaxHistory, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "u", "s", turn(RoleHuman, 0)))
	first, ok := s.ExpiresAt("u", "s")
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Append(ctx, "u", "s", turn(RoleAssistant, 1)))
	second, ok := s.ExpiresAt("u", "s")
	require.True(t, ok)
	assert.True(t, second.After(first))
}

func TestMemoryStoreHonorsCancellation(t *testing.T) {
	s := NewMemoryStore(DefaultMaxHistory, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Append(ctx, "u", "s", turn(RoleHuman, 0)), context.Canceled)
	got, err := s.Load(context.Background(), "u", "s")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestToMessages(t *testing.T) {
	msgs := ToMessages([]ChatTurn{turn(RoleHuman, 0), turn(RoleAssistant, 1)})
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "turn 0"},
		{Role: llm.RoleAssistant, Content: "turn 1"},
	}, msgs)
}

func TestKeyAndCapacity(t *testing.T) {
	assert.Equal(t, "chat:u1:s1", Key("u1", "s1"))
	assert.Equal(t, 20, Capacity(0))
	assert.Equal(t, 6, Capacity(3))
}

func TestWindowKeepsNewestTurn(t *testing.T) {
	stored := []ChatTurn{turn(RoleHuman, 0), turn(RoleAssistant, 1), turn(RoleHuman, 2), turn(RoleAssistant, 3)}
	got := Window(stored, turn(RoleHuman, 4), 2)
	require.Len(t, got, 4)
	assert.Equal(t, "turn 1", got[0].Content)
	assert.Equal(t, "turn 4", got[3].Content)
	assert.Len(t, stored, 4)
	assert.Equal(t, "turn 3", stored[3].Content)

	assert.Len(t, Window(nil, turn(RoleHuman, 0), 0), 1)
}

func TestRedisStoreBoundedHistory(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping Redis chat memory test")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())

	s := NewRedisStore(rdb, 3, time.Minute)
	exerciseBoundedHistory(t, s, 3)
}

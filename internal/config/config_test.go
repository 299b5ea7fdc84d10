package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VECTOR_DIMENSION", "")
	t.Setenv("CHAT_HISTORY_TTL", "")

	cfg := Load()
	assert.Equal(t, 768, cfg.Vector.Dimension)
	assert.Equal(t, 10, cfg.Chat.MaxHistory)
	assert.Equal(t, 7*24*time.Hour, cfg.Chat.HistoryTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Vector.CacheTTL)
	assert.Equal(t, 1000, cfg.Vector.ProbeRange)
	assert.Equal(t, 50<<20, cfg.App.MaxDownloadBytes)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VECTOR_DIMENSION", "384")
	t.Setenv("CHAT_HISTORY_TTL", "1h")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("GO_ENV", "production")

	cfg := Load()
	assert.Equal(t, 384, cfg.Vector.Dimension)
	assert.Equal(t, time.Hour, cfg.Chat.HistoryTTL)
	assert.True(t, cfg.App.OtelEnabled)
	assert.True(t, cfg.IsProduction())
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("CHAT_MAX_HISTORY", "ten")
	t.Setenv("EMBED_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 10, cfg.Chat.MaxHistory)
	assert.Equal(t, 60*time.Second, cfg.Ai.EmbedTimeout)
}

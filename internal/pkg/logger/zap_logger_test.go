package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.log")
	l := NewIsolatedLogger(path)

	l.Info("CHAT_WS", "frame received", map[string]interface{}{"session_id": "s1"})
	l.Error("CHAT_WS", "frame failed", map[string]interface{}{"error": errors.New("boom")})
	l.Debug("CHAT_WS", "below file level", nil)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"message":"frame received"`)
	assert.Contains(t, out, `"module":"CHAT_WS"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.NotContains(t, out, "below file level")
}

func TestNopLogger(t *testing.T) {
	var l ILogger = NewNopLogger()
	l.Warn("X", "ignored", nil)
	assert.NoError(t, l.Sync())
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"studymate-be/internal/dto"
	"studymate-be/internal/pkg/logger"
	"studymate-be/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	err error
}

func (f fakeChat) SendChat(_ context.Context, userId string, req *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SendChatResponse{Message: userId + " asked " + req.Query}, nil
}

func (fakeChat) GetChatHistory(context.Context, string, string) ([]*dto.ChatTurnResponse, error) {
	return nil, nil
}

func (fakeChat) ClearChatHistory(context.Context, string, string) error { return nil }

func reply(t *testing.T, raw []byte) dto.WsChatReply {
	t.Helper()
	var r dto.WsChatReply
	require.NoError(t, json.Unmarshal(raw, &r))
	return r
}

func TestHandleFrame(t *testing.T) {
	ctx := context.Background()
	h := NewChatWsHandler(fakeChat{}, nil, logger.NewNopLogger(), 0)

	got := reply(t, h.HandleFrame(ctx, "u1", []byte(`{"query":"what is mitosis?","document_session_id":"s1"}`)))
	assert.Equal(t, "u1 asked what is mitosis?", got.Message)
	assert.Empty(t, got.Error)

	got = reply(t, h.HandleFrame(ctx, "u1", []byte(`{"query":"hi"}`)))
	assert.Equal(t, "Missing query or document_session_id", got.Error)

	got = reply(t, h.HandleFrame(ctx, "u1", []byte(`not json`)))
	assert.Equal(t, "Malformed message", got.Error)
}

func TestHandleFrameErrors(t *testing.T) {
	ctx := context.Background()
	frame := []byte(`{"query":"q","document_session_id":"s1"}`)

	notFound := NewChatWsHandler(fakeChat{err: fmt.Errorf("%w: session s1 has no embeddings", apperr.ErrNotFound)}, nil, logger.NewNopLogger(), 0)
	assert.Contains(t, reply(t, notFound.HandleFrame(ctx, "u1", frame)).Error, "no embeddings")

	provider := NewChatWsHandler(fakeChat{err: apperr.Provider("chat", errors.New("api key leaked in message"))}, nil, logger.NewNopLogger(), 0)
	assert.Equal(t, "Service temporarily unavailable, try again", reply(t, provider.HandleFrame(ctx, "u1", frame)).Error)

	tier := NewChatWsHandler(fakeChat{err: fmt.Errorf("%w: probe remote store: %w", apperr.ErrTierUnavailable, errors.New("dial tcp 10.0.0.5"))}, nil, logger.NewNopLogger(), 0)
	assert.Equal(t, "Service temporarily unavailable, try again", reply(t, tier.HandleFrame(ctx, "u1", frame)).Error)

	internal := NewChatWsHandler(fakeChat{err: errors.New("disk full")}, nil, logger.NewNopLogger(), 0)
	assert.Equal(t, "Internal server error", reply(t, internal.HandleFrame(ctx, "u1", frame)).Error)
}

// Package testutil holds deterministic stand-ins for the external collaborators (embedding
// provider, document loader, remote vector store, LLM) used across package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"studymate-be/pkg/apperr"
	"studymate-be/pkg/llm"
	"studymate-be/pkg/loader"
	"studymate-be/pkg/remotestore"
)

// KeywordEmbedder maps text to keyword counts, one axis per keyword plus a constant bias
// axis, so similar texts land close together.
type KeywordEmbedder struct {
	Keywords []string
	Err      error

	queries   atomic.Int64
	documents atomic.Int64
}

func NewKeywordEmbedder(keywords ...string) *KeywordEmbedder {
	return &KeywordEmbedder{Keywords: keywords}
}

func (e *KeywordEmbedder) Dim() int { return len(e.Keywords) + 1 }

func (e *KeywordEmbedder) Vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, e.Dim())
	for i, k := range e.Keywords {
		v[i] = float32(strings.Count(lower, strings.ToLower(k)))
	}
	v[len(v)-1] = 1
	return v
}

func (e *KeywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.queries.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Vector(text), nil
}

func (e *KeywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.documents.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.Vector(t)
	}
	return out, nil
}

// Calls returns how many query and batch document calls were made.
func (e *KeywordEmbedder) Calls() (queries, documents int64) {
	return e.queries.Load(), e.documents.Load()
}

// StaticLoader serves pre-chunked documents by source name.
type StaticLoader struct {
	mu      sync.Mutex
	Sources map[string][]string
	loads   int
}

func NewStaticLoader() *StaticLoader {
	return &StaticLoader{Sources: make(map[string][]string)}
}

func (l *StaticLoader) Add(source string, chunks ...string) *StaticLoader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Sources[source] = chunks
	return l
}

func (l *StaticLoader) Load(ctx context.Context, source string) ([]loader.Chunk, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if strings.HasSuffix(source, ".exe") {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, ".exe")
	}
	texts, ok := l.Sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: source %s", apperr.ErrNotFound, source)
	}
	out := make([]loader.Chunk, len(texts))
	for i, t := range texts {
		out[i] = loader.Chunk{Index: i, Page: 1, Text: t}
	}
	return out, nil
}

func (l *StaticLoader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// FlakyRemote wraps a remote store and fails the operations whose error is set.
type FlakyRemote struct {
	remotestore.Store
	UpsertErr error
	FetchErr  error
	DeleteErr error
	QueryErr  error
}

func (f *FlakyRemote) Upsert(ctx context.Context, records []remotestore.Record) error {
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	return f.Store.Upsert(ctx, records)
}

func (f *FlakyRemote) Fetch(ctx context.Context, ids []string) (map[string][]float32, error) {
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return f.Store.Fetch(ctx, ids)
}

func (f *FlakyRemote) Delete(ctx context.Context, ids []string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.Store.Delete(ctx, ids)
}

func (f *FlakyRemote) Query(ctx context.Context, vector []float32, topK int, filter remotestore.Filter) ([]remotestore.Match, error) {
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return f.Store.Query(ctx, vector, topK, filter)
}

// FakeLLM records every call. Reply builds the answer from the messages; nil echoes the
// last message.
type FakeLLM struct {
	Reply func(history []llm.Message) (string, error)

	mu    sync.Mutex
	calls [][]llm.Message
}

func (f *FakeLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]llm.Message(nil), history...))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Reply != nil {
		return f.Reply(history)
	}
	return history[len(history)-1].Content, nil
}

func (f *FakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (f *FakeLLM) Calls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]llm.Message(nil), f.calls...)
}

// Package retrieval finds grounding text for a chat turn. Tiers are tried in a fixed order
// and the first one yielding text wins:
//
//	local index + text cache -> remote vector metadata -> source document -> placeholder
//
// A failing tier is logged and skipped; only invalid input is returned as an error.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"studymate-be/internal/pkg/logger"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/embedding"
	"studymate-be/pkg/loader"
	"studymate-be/pkg/remotestore"
	"studymate-be/pkg/textcache"
	"studymate-be/pkg/vectorstore"
)

// K is the number of chunks each tier contributes at most. It bounds prompt size.
const K = 3

// Placeholder is returned when no tier produced text.
const Placeholder = "No relevant document context found."

const module = "RETRIEVAL"

type Tier int

const (
	TierLocal Tier = iota + 1
	TierRemote
	TierSource
	TierPlaceholder
)

func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierRemote:
		return "remote"
	case TierSource:
		return "source"
	case TierPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Attempt records how one tier fared. Err wraps apperr.ErrTierUnavailable.
type Attempt struct {
	Tier   Tier
	Err    error
	Reason string
}

// Result is the grounding text plus the tier that produced it.
type Result struct {
	Text     string
	Chunks   []string
	Tier     Tier
	Attempts []Attempt
}

// IsPlaceholder reports whether no tier found context.
func (r Result) IsPlaceholder() bool { return r.Tier == TierPlaceholder }

type LocalIndex interface {
	SearchSession(session string, query []float32, k int) ([]vectorstore.ChunkHit, error)
}

type SourceLoader interface {
	Load(ctx context.Context, source string) ([]loader.Chunk, error)
}

type Deps struct {
	Embedder embedding.EmbeddingProvider
	Local    LocalIndex
	Cache    textcache.Cache
	Remote   remotestore.Store
	Sources  vectorstore.SourceRegistry
	Loader   SourceLoader
	Logger   logger.ILogger
	Tracer   trace.Tracer

	EmbedTimeout  time.Duration
	RemoteTimeout time.Duration
	SourceTimeout time.Duration
}

type Orchestrator struct {
	d Deps
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("studymate-be/retrieval")
	}
	if d.EmbedTimeout <= 0 {
		d.EmbedTimeout = 30 * time.Second
	}
	if d.RemoteTimeout <= 0 {
		d.RemoteTimeout = 15 * time.Second
	}
	if d.SourceTimeout <= 0 {
		d.SourceTimeout = 2 * time.Minute
	}
	return &Orchestrator{d: d}
}

// FromStore wires an orchestrator to the tiers of a vector store.
func FromStore(s *vectorstore.Store, l SourceLoader, log logger.ILogger) *Orchestrator {
	return NewOrchestrator(Deps{
		Embedder: s.Embedder(),
		Local:    s,
		Cache:    s.Cache(),
		Remote:   s.Remote(),
		Sources:  s.Sources(),
		Loader:   l,
		Logger:   log,
	})
}

type tierFunc func(ctx context.Context, session string, vec []float32) ([]string, string, error)

// Retrieve returns grounding text for query within session. It never fails once the input
// is valid; the placeholder marks the absence of context.
func (o *Orchestrator) Retrieve(ctx context.Context, session, query string) (Result, error) {
	if err := apperr.RequireID("session", session); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(query) == "" {
		return Result{}, apperr.Invalid("query must be a non-empty string")
	}

	ctx, span := o.d.Tracer.Start(ctx, "retrieval.retrieve", trace.WithAttributes(
		attribute.String("session_id", session),
	))
	defer span.End()

	// The query is embedded once and shared by the vector tiers.
	ectx, cancel := context.WithTimeout(ctx, o.d.EmbedTimeout)
	vec, embedErr := o.d.Embedder.EmbedQuery(ectx, query)
	cancel()
	if embedErr != nil {
		embedErr = apperr.Provider("embed query", embedErr)
	}

	var res Result
	tiers := []struct {
		tier Tier
		run  tierFunc
		vec  bool
	}{
		{TierLocal, o.local, true},
		{TierRemote, o.remote, true},
		{TierSource, o.source, false},
	}
	for _, t := range tiers {
		if t.vec && embedErr != nil {
			res.Attempts = append(res.Attempts, o.fail(ctx, session, t.tier, embedErr))
			continue
		}
		chunks, reason, err := o.runTier(ctx, t.tier, session, vec, t.run)
		if err != nil {
			res.Attempts = append(res.Attempts, o.fail(ctx, session, t.tier, err))
			continue
		}
		res.Attempts = append(res.Attempts, Attempt{Tier: t.tier, Reason: reason})
		if len(chunks) > 0 {
			res.Tier = t.tier
			res.Chunks = chunks
			res.Text = strings.Join(chunks, "\n\n")
			span.SetAttributes(attribute.String("retrieval.tier", t.tier.String()))
			o.d.Logger.Debug(module, "Context retrieved", map[string]interface{}{
				"session_id": session,
				"tier":       t.tier.String(),
				"chunks":     len(chunks),
			})
			return res, nil
		}
	}

	res.Tier = TierPlaceholder
	res.Text = Placeholder
	res.Attempts = append(res.Attempts, Attempt{Tier: TierPlaceholder})
	span.SetAttributes(attribute.String("retrieval.tier", TierPlaceholder.String()))
	o.d.Logger.Info(module, "No tier produced context, using placeholder", map[string]interface{}{
		"session_id": session,
	})
	return res, nil
}

func (o *Orchestrator) runTier(ctx context.Context, tier Tier, session string, vec []float32, run tierFunc) ([]string, string, error) {
	ctx, span := o.d.Tracer.Start(ctx, "retrieval.tier."+tier.String())
	defer span.End()

	chunks, reason, err := run(ctx, session, vec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", err
	}
	span.SetAttributes(attribute.Int("retrieval.chunks", len(chunks)))
	return chunks, reason, nil
}

func (o *Orchestrator) fail(ctx context.Context, session string, tier Tier, err error) Attempt {
	if !errors.Is(err, apperr.ErrTierUnavailable) {
		err = fmt.Errorf("%w: %s: %w", apperr.ErrTierUnavailable, tier, err)
	}
	o.d.Logger.Warn(module, "Retrieval tier failed", map[string]interface{}{
		"session_id": session,
		"tier":       tier.String(),
		"error":      err.Error(),
	})
	return Attempt{Tier: tier, Err: err}
}

// local succeeds only when every hit resolves to cached text; otherwise the remote tier
// takes over.
func (o *Orchestrator) local(ctx context.Context, session string, vec []float32) ([]string, string, error) {
	hits, err := o.d.Local.SearchSession(session, vec, K)
	if err != nil {
		return nil, "", err
	}
	if len(hits) == 0 {
		return nil, "no local vectors", nil
	}

	chunks := make([]string, 0, len(hits))
	for _, h := range hits {
		text, ok, err := o.d.Cache.Get(ctx, textcache.DocKey(session, h.ChunkIndex))
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "cache cold", nil
		}
		chunks = append(chunks, text)
	}
	return chunks, "", nil
}

func (o *Orchestrator) remote(ctx context.Context, session string, vec []float32) ([]string, string, error) {
	rctx, cancel := context.WithTimeout(ctx, o.d.RemoteTimeout)
	defer cancel()

	matches, err := o.d.Remote.Query(rctx, vec, K, remotestore.Filter{Session: session})
	if err != nil {
		return nil, "", err
	}
	var chunks []string
	for _, m := range matches {
		if strings.TrimSpace(m.Text) != "" {
			chunks = append(chunks, m.Text)
		}
	}
	if len(chunks) == 0 {
		return nil, "no remote matches", nil
	}
	return chunks, "", nil
}

func (o *Orchestrator) source(ctx context.Context, session string, _ []float32) ([]string, string, error) {
	if o.d.Sources == nil || o.d.Loader == nil {
		return nil, "no source registry", nil
	}
	src, ok, err := o.d.Sources.Get(ctx, session)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "no registered source", nil
	}

	sctx, cancel := context.WithTimeout(ctx, o.d.SourceTimeout)
	defer cancel()
	loaded, err := o.d.Loader.Load(sctx, src)
	if err != nil {
		return nil, "", err
	}
	var chunks []string
	for _, c := range loaded {
		if len(chunks) == K {
			break
		}
		chunks = append(chunks, c.Text)
	}
	if len(chunks) == 0 {
		return nil, "source has no text", nil
	}
	return chunks, "", nil
}

// Package chat runs one grounded chat turn: load history, retrieve context, render the
// prompt, call the LLM and persist the human and assistant turns together.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"studymate-be/internal/pkg/logger"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/llm"
	"studymate-be/pkg/rag/memory"
	"studymate-be/pkg/rag/prompt"
	"studymate-be/pkg/rag/retrieval"
)

const module = "CHAT_ENGINE"

type Retriever interface {
	Retrieve(ctx context.Context, session, query string) (retrieval.Result, error)
}

type SessionChecker interface {
	HasEmbeddings(ctx context.Context, session string) (bool, error)
}

type Config struct {
	// MaxHistory is the number of exchanges rendered into the prompt, the newest human turn
	// included.
	MaxHistory     int
	LLMTimeout     time.Duration
	PersistTimeout time.Duration
}

type Deps struct {
	Retriever Retriever
	Sessions  SessionChecker
	History   memory.Store
	LLM       llm.LLMProvider
	Logger    logger.ILogger
	Tracer    trace.Tracer
	Now       func() time.Time
}

type Engine struct {
	cfg Config
	d   Deps
}

func NewEngine(cfg Config, d Deps) *Engine {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = memory.DefaultMaxHistory
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 2 * time.Minute
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("studymate-be/chat")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{cfg: cfg, d: d}
}

// Reply is the outcome of one turn.
type Reply struct {
	Answer      string
	ContextTier retrieval.Tier
}

// Chat answers query for user within session.
func (e *Engine) Chat(ctx context.Context, user, session, query string) (string, error) {
	r, err := e.Turn(ctx, user, session, query)
	if err != nil {
		return "", err
	}
	return r.Answer, nil
}

// Turn is Chat with retrieval details. Nothing is written to history unless the LLM
// answered; once writing starts it is not cut short by ctx cancellation.
func (e *Engine) Turn(ctx context.Context, user, session, query string) (Reply, error) {
	if err := apperr.RequireID("user", user); err != nil {
		return Reply{}, err
	}
	if err := apperr.RequireID("session", session); err != nil {
		return Reply{}, err
	}
	if strings.TrimSpace(query) == "" {
		return Reply{}, apperr.Invalid("query must be a non-empty string")
	}

	ctx, span := e.d.Tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("session_id", session),
	))
	defer span.End()

	reply, err := e.turn(ctx, user, session, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.d.Logger.Warn(module, "Chat turn failed", map[string]interface{}{
			"user_id":    user,
			"session_id": session,
			"error":      err.Error(),
		})
		return Reply{}, err
	}
	span.SetAttributes(attribute.String("retrieval.tier", reply.ContextTier.String()))
	return reply, nil
}

func (e *Engine) turn(ctx context.Context, user, session, query string) (Reply, error) {
	has, err := e.d.Sessions.HasEmbeddings(ctx, session)
	if err != nil {
		return Reply{}, err
	}
	if !has {
		return Reply{}, fmt.Errorf("%w: session %s has no embeddings", apperr.ErrNotFound, session)
	}

	history, err := e.d.History.Load(ctx, user, session)
	if err != nil {
		return Reply{}, fmt.Errorf("load chat history: %w", err)
	}

	grounding, err := e.d.Retriever.Retrieve(ctx, session, query)
	if err != nil {
		return Reply{}, err
	}

	human := memory.ChatTurn{Role: memory.RoleHuman, Content: query, TS: e.d.Now().UTC()}
	window := memory.Window(history, human, e.cfg.MaxHistory)
	msgs := prompt.NewChatBuilder(window, grounding.Text, human.Content).Messages()

	// Last point at which the caller can abort the turn.
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	lctx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
	answer, err := e.d.LLM.Chat(lctx, msgs)
	cancel()
	if err != nil {
		return Reply{}, apperr.Provider("generate answer", err)
	}

	assistant := memory.ChatTurn{Role: memory.RoleAssistant, Content: answer, TS: e.d.Now().UTC()}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.PersistTimeout)
	defer cancel()
	if err := e.d.History.Append(pctx, user, session, human, assistant); err != nil {
		return Reply{}, fmt.Errorf("persist chat turn: %w", err)
	}

	e.d.Logger.Info(module, "Chat turn completed", map[string]interface{}{
		"user_id":      user,
		"session_id":   session,
		"context_tier": grounding.Tier.String(),
		"history":      len(history),
	})
	return Reply{Answer: answer, ContextTier: grounding.Tier}, nil
}

// Package studytools generates study material from a session's source document: a refined
// summary, multiple-choice questions and question/answer study cards.
package studytools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"studymate-be/internal/pkg/logger"
	"studymate-be/pkg/apperr"
	"studymate-be/pkg/llm"
	"studymate-be/pkg/loader"
	"studymate-be/pkg/vectorstore"
)

const (
	module = "STUDY_TOOLS"

	DefaultCount = 15
	// maxPromptText caps the document text sent in one generation prompt.
	maxPromptText = 24000
)

type Answer struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type Question struct {
	QuestionText string   `json:"questionText"`
	Answers      []Answer `json:"answers"`
}

type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type PageLoader interface {
	LoadPages(ctx context.Context, source string) ([]loader.Page, error)
	Split(pages []loader.Page) []loader.Chunk
}

type Tools struct {
	llm     llm.LLMProvider
	loader  PageLoader
	sources vectorstore.SourceRegistry
	logger  logger.ILogger
	count   int
}

func New(provider llm.LLMProvider, l PageLoader, sources vectorstore.SourceRegistry, log logger.ILogger) *Tools {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Tools{llm: provider, loader: l, sources: sources, logger: log, count: DefaultCount}
}

func (t *Tools) source(ctx context.Context, session string) ([]loader.Page, error) {
	if err := apperr.RequireID("session", session); err != nil {
		return nil, err
	}
	src, ok, err := t.sources.Get(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("look up session source: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: session %s has no registered source", apperr.ErrNotFound, session)
	}
	return t.loader.LoadPages(ctx, src)
}

// Summarize runs a refine chain over the session document's chunks.
func (t *Tools) Summarize(ctx context.Context, session string) (string, error) {
	pages, err := t.source(ctx, session)
	if err != nil {
		return "", err
	}
	var chunks []string
	for _, c := range t.loader.Split(pages) {
		chunks = append(chunks, c.Text)
	}
	return t.SummarizeChunks(ctx, chunks)
}

// SummarizeChunks summarizes the first chunk and refines the summary with each following one.
func (t *Tools) SummarizeChunks(ctx context.Context, chunks []string) (string, error) {
	if len(chunks) == 0 {
		return "", apperr.Invalid("nothing to summarize")
	}
	summary, err := t.llm.Generate(ctx, fmt.Sprintf(summaryPrompt, chunks[0]))
	if err != nil {
		return "", apperr.Provider("summarize", err)
	}
	for i, c := range chunks[1:] {
		refined, err := t.llm.Generate(ctx, fmt.Sprintf(refinePrompt, summary, c))
		if err != nil {
			return "", apperr.Provider(fmt.Sprintf("refine summary step %d", i+1), err)
		}
		summary = refined
	}
	return strings.TrimSpace(summary), nil
}

// MultipleChoice generates questions over the session document.
func (t *Tools) MultipleChoice(ctx context.Context, session string) ([]Question, error) {
	pages, err := t.source(ctx, session)
	if err != nil {
		return nil, err
	}
	return t.MultipleChoiceFromText(ctx, joinPages(pages))
}

func (t *Tools) MultipleChoiceFromText(ctx context.Context, text string) ([]Question, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid("no text to generate questions from")
	}
	raw, err := t.llm.Generate(ctx, fmt.Sprintf(mcqPrompt, t.count, clip(text)), llm.WithTemperature(0.3))
	if err != nil {
		return nil, apperr.Provider("generate questions", err)
	}
	var parsed []Question
	if err := ParseJSONList(raw, &parsed); err != nil {
		return nil, apperr.Provider("parse questions", err)
	}

	out := make([]Question, 0, len(parsed))
	for _, q := range parsed {
		if valid(q) {
			out = append(out, q)
		}
	}
	if dropped := len(parsed) - len(out); dropped > 0 {
		t.logger.Warn(module, "Dropped malformed questions", map[string]interface{}{"dropped": dropped})
	}
	if len(out) == 0 {
		return nil, apperr.Provider("generate questions", errors.New("model returned no usable questions"))
	}
	return out, nil
}

// StudyCards generates question/answer cards over the session document.
func (t *Tools) StudyCards(ctx context.Context, session string) ([]Card, error) {
	pages, err := t.source(ctx, session)
	if err != nil {
		return nil, err
	}
	return t.StudyCardsFromText(ctx, joinPages(pages))
}

func (t *Tools) StudyCardsFromText(ctx context.Context, text string) ([]Card, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid("no text to generate study cards from")
	}
	raw, err := t.llm.Generate(ctx, fmt.Sprintf(cardPrompt, t.count, clip(text)), llm.WithTemperature(0.3))
	if err != nil {
		return nil, apperr.Provider("generate study cards", err)
	}
	var parsed []Card
	if err := ParseJSONList(raw, &parsed); err != nil {
		return nil, apperr.Provider("parse study cards", err)
	}
	out := make([]Card, 0, len(parsed))
	for _, c := range parsed {
		if strings.TrimSpace(c.Question) != "" && strings.TrimSpace(c.Answer) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, apperr.Provider("generate study cards", errors.New("model returned no usable cards"))
	}
	return out, nil
}

// ParseJSONList decodes the JSON array in an LLM reply, tolerating code fences and any text
// around the array.
func ParseJSONList(raw string, v interface{}) error {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return errors.New("no JSON array in response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("decode JSON array: %w", err)
	}
	return nil
}

func valid(q Question) bool {
	if strings.TrimSpace(q.QuestionText) == "" || len(q.Answers) < 2 {
		return false
	}
	correct := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	return correct == 1
}

func joinPages(pages []loader.Page) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}

func clip(text string) string {
	r := []rune(text)
	if len(r) <= maxPromptText {
		return text
	}
	return string(r[:maxPromptText])
}

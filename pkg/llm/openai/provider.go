package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"studymate-be/pkg/llm"
)

// Provider talks to any OpenAI-compatible chat completions endpoint.
type Provider struct {
	client *goopenai.Client
	model  string
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(apiKey, baseURL, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is not set")
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &Provider{client: goopenai.NewClientWithConfig(cfg), model: model}, nil
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.Apply(llm.Options{Temperature: 0.7, Model: p.model}, opts...)

	msgs := make([]goopenai.ChatCompletionMessage, len(history))
	for i, m := range history {
		msgs[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    msgs,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	}
	if options.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

package factory

import (
	"fmt"

	"studymate-be/pkg/llm"
	"studymate-be/pkg/llm/ollama"
	"studymate-be/pkg/llm/openai"
)

type Config struct {
	Provider string // "ollama" or "openai"
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai", "":
		return openai.NewProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

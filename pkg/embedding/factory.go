package embedding

import (
	"fmt"

	"studymate-be/pkg/embedding/jina"
)

// ProviderConfig selects and configures an embedding backend.
type ProviderConfig struct {
	Provider      string // "gemini", "ollama", "jina" or "openai"
	GeminiAPIKey  string
	JinaAPIKey    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OllamaBaseURL string
	OllamaModel   string
}

func NewProvider(cfg ProviderConfig) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	case "jina":
		return jina.NewJinaProvider(cfg.JinaAPIKey), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case "gemini", "":
		return NewGeminiProvider(cfg.GeminiAPIKey), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

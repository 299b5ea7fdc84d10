package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	geminiModel    = "text-embedding-004"
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta/models/"
	taskQuery      = "RETRIEVAL_QUERY"
	taskDocument   = "RETRIEVAL_DOCUMENT"
	geminiMaxBatch = 100
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"task_type,omitempty"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiValues struct {
	Values []float32 `json:"values"`
}

type geminiBatchResponse struct {
	Embeddings []geminiValues `json:"embeddings"`
}

type GeminiProvider struct {
	ApiKey  string
	BaseURL string
	Client  *http.Client
}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		ApiKey:  apiKey,
		BaseURL: geminiBaseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := p.batch(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (p *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := min(start+geminiMaxBatch, len(texts))
		vs, err := p.batch(ctx, texts[start:end], taskDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}

func (p *GeminiProvider) batch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	req := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, t := range texts {
		req.Requests[i] = geminiEmbedRequest{
			Model:    "models/" + geminiModel,
			Content:  geminiContent{Parts: []geminiPart{{Text: t}}},
			TaskType: taskType,
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s%s:batchEmbedContents", p.BaseURL, geminiModel)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", p.ApiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error from gemini response, code %d, body %s", res.StatusCode, string(resByte))
	}

	var parsed geminiBatchResponse
	if err := json.Unmarshal(resByte, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(parsed.Embeddings), len(texts))
	}
	out := make([][]float32, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/memora/internal/config"
)

// EmbeddingsProvider calls an OpenAI-compatible /embeddings endpoint.
type EmbeddingsProvider struct {
	baseProvider
}

func NewEmbeddingsProvider(cfg *config.EmbeddingsConfig) *EmbeddingsProvider {
	return &EmbeddingsProvider{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
	}
}

func (e *EmbeddingsProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model": e.model,
		"input": text,
	}

	headers := make(map[string]string)
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}

	data, err := e.post(ctx, "/embeddings", payload, headers)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("empty embedding data: %s", string(data))
	}
	return result.Data[0].Embedding, nil
}

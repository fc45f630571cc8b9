package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

// NewProvider creates the configured language model.
func NewProvider(ctx context.Context, cfg *config.AppConfig) (core.LanguageModel, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.LLMProvider).
		Msg("starting llm provider")

	var chat ChatProvider
	switch cfg.LLMProvider {
	case "openai":
		c := config.NewOpenAIConfig(ctx)
		chat = NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    "https://api.openai.com/v1",
			APIKey:     c.APIKey,
			Model:      c.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		})
	case "openrouter":
		c := config.NewOpenRouterConfig(ctx)
		chat = NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    "https://openrouter.ai/api/v1",
			APIKey:     c.APIKey,
			Model:      c.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		})
	case "ollama":
		c := config.NewOllamaConfig(ctx)
		chat = NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL: c.BaseURL,
			Model:   c.Model,
		})
	case "custom":
		c := config.NewCustomConfig(ctx)
		chat = NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    c.BaseURL,
			APIKey:     c.APIKey,
			Model:      c.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}

	return NewClient(chat), nil
}

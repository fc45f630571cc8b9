package llm

import (
	"context"
	"strings"

	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

// Client renders a role prompt and runs it through a chat provider.
// It is the only core.LanguageModel implementation in the binary;
// tests substitute their own fakes.
type Client struct {
	provider ChatProvider
}

func NewClient(provider ChatProvider) *Client {
	return &Client{provider: provider}
}

func (c *Client) Invoke(ctx context.Context, role core.PromptRole, vars map[string]string) (string, error) {
	messages, err := renderPrompt(role, vars)
	if err != nil {
		return "", err
	}

	out, err := c.provider.Chat(ctx, messages)
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Str("role", string(role)).Msg("llm call failed")
		return "", err
	}
	return strings.TrimSpace(out), nil
}

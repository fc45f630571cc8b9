// Package answer turns retrieved context and user facts into the
// user-facing reply.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
	"github.com/sandevgo/memora/pkg/retry"
)

// FallbackAnswer is returned when generation fails after all retries.
const FallbackAnswer = "I apologize, but I could not retrieve the context needed to answer your question. Please try again."

type Generator struct {
	model   core.LanguageModel
	memCfg  *config.MemoryConfig
	retCfg  *config.RetrievalConfig
	retrier *retry.Retrier
}

func New(model core.LanguageModel, memCfg *config.MemoryConfig, retCfg *config.RetrievalConfig) *Generator {
	return &Generator{
		model:   model,
		memCfg:  memCfg,
		retCfg:  retCfg,
		retrier: retry.NewDefaultRetrier(),
	}
}

// Generate produces the answer for a substantive question. It retries a
// bounded number of times and returns an error only when every attempt
// failed or produced an invalid answer; callers substitute FallbackAnswer.
func (g *Generator) Generate(ctx context.Context, question string, facts map[string]core.Fact, docs []core.Fragment) (string, error) {
	vars := map[string]string{
		"input":   question,
		"facts":   g.formatFacts(facts),
		"context": formatDocs(docs),
	}

	var answer string
	err := g.retrier.Do(ctx, func() error {
		out, err := g.model.Invoke(ctx, core.RoleAnswerGeneration, vars)
		if err != nil {
			return err
		}
		if err := g.validate(out); err != nil {
			return err
		}
		answer = out
		return nil
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("answer generation failed")
		return "", err
	}
	return answer, nil
}

func (g *Generator) validate(answer string) error {
	if strings.TrimSpace(answer) == "" {
		return fmt.Errorf("empty answer")
	}
	if len(answer) > g.retCfg.MaxAnswerChars {
		return fmt.Errorf("answer too long: %d chars", len(answer))
	}
	return nil
}

// formatFacts renders the high-confidence facts, confidence-sorted.
// Low-confidence facts stay in memory but never reach the prompt.
func (g *Generator) formatFacts(facts map[string]core.Fact) string {
	keys := core.SortedFactKeys(facts)

	var lines []string
	for _, k := range keys {
		f := facts[k]
		if f.Confidence < g.memCfg.MinPromptConfidence {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s: %v", k, f.Value))
	}
	if len(lines) == 0 {
		return "none"
	}
	return strings.Join(lines, "\n")
}

func formatDocs(docs []core.Fragment) string {
	if len(docs) == 0 {
		return "none"
	}
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if d.Source != "" {
			b.WriteString("[" + d.Source + "]\n")
		}
		b.WriteString(d.Text)
	}
	return b.String()
}

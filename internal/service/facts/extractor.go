// Package facts implements the two memory-writing stages of a turn:
// extraction of candidate facts from the conversation and reconciliation
// of those candidates into the stored fact map.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

type Extractor struct {
	model core.LanguageModel
	cfg   *config.MemoryConfig
}

func NewExtractor(model core.LanguageModel, cfg *config.MemoryConfig) *Extractor {
	return &Extractor{model: model, cfg: cfg}
}

// Extract proposes facts from the latest exchange. Existing keys (not
// values) are passed along so the model does not re-extract what memory
// already tracks. Malformed entries are dropped one by one; only an
// unusable response as a whole is an error.
func (e *Extractor) Extract(ctx context.Context, question, answer string, existingKeys []string, now time.Time) (map[string]core.Fact, error) {
	conversation := fmt.Sprintf("USER: %s\nASSISTANT: %s", question, answer)

	resp, err := e.model.Invoke(ctx, core.RoleFactExtraction, map[string]string{
		"input":      conversation,
		"known_keys": strings.Join(existingKeys, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("llm invoke: %w", err)
	}

	candidates, err := parseExtractionResponse(resp)
	if err != nil {
		return nil, err
	}

	logger := log.FromCtx(ctx)
	proposed := make(map[string]core.Fact)
	for key, c := range candidates {
		key = normalizeKey(key)
		if key == "" {
			continue
		}
		if c.Confidence == nil || *c.Confidence < 0 || *c.Confidence > 1 {
			logger.Debug().Str("key", key).Msg("dropping candidate: bad confidence")
			continue
		}
		if c.Value == nil || fmt.Sprintf("%v", c.Value) == "" {
			logger.Debug().Str("key", key).Msg("dropping candidate: empty value")
			continue
		}
		if *c.Confidence < e.cfg.AcceptFloor {
			logger.Debug().Str("key", key).Float64("confidence", *c.Confidence).Msg("dropping candidate: below accept floor")
			continue
		}
		proposed[key] = core.Fact{
			Key:           key,
			Value:         c.Value,
			Confidence:    *c.Confidence,
			Source:        core.SourceExtraction,
			CreatedAt:     now,
			LastUpdatedAt: now,
		}
	}

	logger.Debug().Int("candidates", len(candidates)).Int("accepted", len(proposed)).Msg("fact extraction completed")
	return proposed, nil
}

type candidate struct {
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence"`
}

func parseExtractionResponse(content string) (map[string]candidate, error) {
	jsonStr := extractJSONObject(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var result struct {
		Facts map[string]candidate `json:"facts"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}
	if result.Facts == nil {
		return nil, fmt.Errorf("response has no facts object")
	}
	return result.Facts, nil
}

// extractJSONObject pulls the outermost JSON object out of a response
// that may carry prose or code fences around it.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "}")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "_")
	return key
}

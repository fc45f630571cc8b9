package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/memora/pkg/log"
)

// MemoryConfig tunes fact extraction, merging and long-term retention.
// The defaults are the ones the pipeline was calibrated with; override
// them only if you know what a given knob trades away.
type MemoryConfig struct {
	// Extraction candidates below this confidence are discarded outright.
	AcceptFloor float64 `env:"MEMORY_ACCEPT_FLOOR" envDefault:"0.8"`
	// Facts below this confidence are dropped at the end of a merge pass.
	RetentionFloor float64 `env:"MEMORY_RETENTION_FLOOR" envDefault:"0.3"`
	// Weekly multiplicative decay applied to facts untouched in a turn.
	WeeklyDecay float64 `env:"MEMORY_WEEKLY_DECAY" envDefault:"0.98"`
	// Passed to the conflict resolver as guidance: a stored fact whose
	// confidence exceeds the candidate's by more than this should win.
	// The engine itself never tie-breaks on it.
	ConflictMargin float64 `env:"MEMORY_CONFLICT_MARGIN" envDefault:"0.25"`
	// Above this many facts the map is summarized back down.
	FactCeiling int `env:"MEMORY_FACT_CEILING" envDefault:"48"`
	// Inputs shorter than this many tokens are never worth extracting from.
	MinExtractTokens int `env:"MEMORY_MIN_EXTRACT_TOKENS" envDefault:"12"`
	// Facts below this confidence are withheld from answer prompts.
	MinPromptConfidence float64 `env:"MEMORY_MIN_PROMPT_CONFIDENCE" envDefault:"0.5"`
	// Conversation log entries retained per user, oldest dropped first.
	LogCap int `env:"MEMORY_LOG_CAP" envDefault:"200"`
	// Superseded values kept per fact.
	HistoryCap int `env:"MEMORY_HISTORY_CAP" envDefault:"5"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	return c
}

// RetrievalConfig bounds how much retrieved context a turn may carry.
type RetrievalConfig struct {
	SearchK        int `env:"RETRIEVAL_SEARCH_K" envDefault:"8"`
	PerDocChars    int `env:"RETRIEVAL_PER_DOC_CHARS" envDefault:"1200"`
	TotalChars     int `env:"RETRIEVAL_TOTAL_CHARS" envDefault:"4800"`
	MaxAnswerChars int `env:"ANSWER_MAX_CHARS" envDefault:"8000"`
}

func NewRetrievalConfig(ctx context.Context) *RetrievalConfig {
	c := &RetrievalConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Retrieval config")
	}
	return c
}

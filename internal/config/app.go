package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/memora/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"MEMORA_RUNTIME_PATH" envDefault:".memora"`
	// Allow selecting the provider
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openrouter"`

	// Transport flags
	EnableCLI bool `env:"ENABLE_CLI" envDefault:"true"`

	// Every call to an external collaborator is bounded by this timeout;
	// a timeout is treated like a hard failure of the calling node.
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"30s"`

	// Background decay sweep over idle users. Zero disables the sweeper.
	SweepInterval time.Duration `env:"MEMORY_SWEEP_INTERVAL" envDefault:"6h"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "memora.db")
}

func (c AppConfig) GetIndexPath() string {
	return filepath.Join(c.RuntimePath, "index")
}

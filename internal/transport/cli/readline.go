package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/service/workflow"
	"github.com/sandevgo/memora/pkg/log"
)

const defaultUserID = "cli-local"

type ReadLine struct {
	cfg    *config.AppConfig
	engine *workflow.Engine
	userID string
	rl     *readline.Instance
}

func NewReadLine(engine *workflow.Engine, cfg *config.AppConfig, userID string) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	if userID == "" {
		userID = defaultUserID
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:    cfg,
		engine: engine,
		userID: userID,
		rl:     rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("user_id", r.userID).Msg("ReadLine chat started. Type 'exit' to quit.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		result, err := r.engine.Run(ctx, r.userID, line)
		if err != nil {
			logger.Error().Err(err).Msg("turn aborted")
			fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
			continue
		}

		fmt.Fprintf(r.rl.Stdout(), "%s\n", result.Answer)

		if result.Degraded() {
			fmt.Fprintf(r.rl.Stdout(), "\033[38;5;240m[degraded: %d step(s) fell back]\033[0m\n", len(result.NodeErrors))
		}
		if result.MemoryUpdated {
			fmt.Fprintf(r.rl.Stdout(), "\033[38;5;240m[memory updated: %s]\033[0m\n", strings.Join(result.FactsExtracted, ", "))
		}
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}

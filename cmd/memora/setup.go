package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/internal/providers/llm"
	"github.com/sandevgo/memora/internal/providers/vectordb"
	"github.com/sandevgo/memora/internal/service/answer"
	"github.com/sandevgo/memora/internal/service/facts"
	"github.com/sandevgo/memora/internal/service/retriever"
	"github.com/sandevgo/memora/internal/service/router"
	"github.com/sandevgo/memora/internal/service/workflow"
	"github.com/sandevgo/memora/internal/storage/sqlite"
	"github.com/sandevgo/memora/internal/transport/cli"
	"github.com/sandevgo/memora/pkg/log"
	"github.com/sandevgo/memora/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	engine, merger, store, appCfg, services := buildEngine(ctx)
	logger := log.FromCtx(ctx)

	// Background memory maintenance
	services = append(services, workflow.NewSweeper(store, merger, appCfg.SweepInterval))

	// Transports
	if appCfg.EnableCLI {
		rl, err := cli.NewReadLine(engine, appCfg, chatUser)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize CLI transport")
		}
		services = append(services, rl)
	}

	return services
}

// buildEngine wires the whole pipeline and returns it together with the
// cleanup services accumulated along the way.
func buildEngine(ctx context.Context) (*workflow.Engine, *facts.Merger, core.MemoryStore, *config.AppConfig, []srv.Service) {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	memCfg := config.NewMemoryConfig(ctx)
	retCfg := config.NewRetrievalConfig(ctx)
	embCfg := config.NewEmbeddingsConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup("sqlite", db.Close))
	store := sqlite.NewUserMemoryRepo(db)

	// 3. Vector index over the reference documents
	embedder := llm.NewEmbeddingsProvider(embCfg)
	index, err := vectordb.NewChromemIndex(embedder, appCfg.GetIndexPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vector index")
	}
	services = append(services, srv.NewCleanup("vector-index", index.Persist))

	// 4. Language model
	model, err := llm.NewProvider(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// 5. Pipeline stages
	rt := router.New(model, memCfg)
	ret := retriever.New(index, retCfg)
	gen := answer.New(model, memCfg, retCfg)
	ext := facts.NewExtractor(model, memCfg)
	mrg := facts.NewMerger(model, memCfg)

	engine := workflow.NewEngine(store, rt, ret, gen, ext, mrg, appCfg, memCfg)

	return engine, mrg, store, appCfg, services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}

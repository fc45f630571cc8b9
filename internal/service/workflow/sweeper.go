package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/internal/service/facts"
	"github.com/sandevgo/memora/pkg/log"
)

// Sweeper periodically applies confidence decay to every stored user, so
// memory ages even for users with no active turns. It runs as a
// background service next to the transports.
type Sweeper struct {
	store    core.MemoryStore
	merger   *facts.Merger
	Interval time.Duration
}

func NewSweeper(store core.MemoryStore, merger *facts.Merger, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		merger:   merger,
		Interval: interval,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	if s.Interval <= 0 {
		log.FromCtx(ctx).Info().Msg("memory sweeper disabled")
		<-ctx.Done()
		return nil
	}

	log.FromCtx(ctx).Info().Dur("interval", s.Interval).Msg("starting memory sweeper")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				log.FromCtx(ctx).Error().Err(err).Msg("memory sweep failed")
			}
		}
	}
}

func (s *Sweeper) Shutdown(ctx context.Context) error {
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	logger := log.FromCtx(ctx)
	now := time.Now()
	swept := 0

	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		mem, err := s.store.Get(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("sweep: load failed")
			continue
		}
		if mem == nil || len(mem.Facts) == 0 {
			continue
		}

		if !s.merger.DecayPass(mem, now) {
			continue
		}

		mem.LastUpdatedAt = now
		if err := s.store.Put(ctx, userID, mem); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("sweep: write failed")
			continue
		}
		swept++
	}

	if swept > 0 {
		logger.Info().Int("users", swept).Msg("memory sweep completed")
	}
	return nil
}

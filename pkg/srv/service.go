package srv

import (
	"context"
	"fmt"

	"github.com/sandevgo/memora/pkg/log"
)

// Service is anything with a lifecycle tied to the process: the chat
// REPL, the decay sweeper, and resource cleanups all satisfy it.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// StartServices launches every service on its own goroutine. A service
// that cannot start takes the process down; a half-started assistant has
// nothing useful to do.
func StartServices(ctx context.Context, services []Service) {
	logger := log.FromCtx(ctx)
	for _, s := range services {
		go func(s Service) {
			if err := s.Start(ctx); err != nil {
				logger.Fatal().Err(err).Str("service", name(s)).Msg("service failed to start")
			}
		}(s)
	}
}

// ShutdownServices blocks until ctx is cancelled, then shuts services
// down in registration order. Shutdown errors are logged, not returned;
// at this point the process is exiting either way.
func ShutdownServices(ctx context.Context, services []Service) {
	<-ctx.Done()
	for _, s := range services {
		if err := s.Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("service", name(s)).Msg("service failed to shutdown")
		}
	}
}

func name(s Service) string {
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T", s)
}

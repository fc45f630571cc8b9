package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/sandevgo/memora/internal/transport/cli"
	"github.com/sandevgo/memora/pkg/log"
	"github.com/spf13/cobra"
)

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively without background services",
	Long:  `Runs only the conversation pipeline in the terminal, skipping the background memory sweeper.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		engine, _, _, appCfg, cleanups := buildEngine(ctx)

		rl, err := cli.NewReadLine(engine, appCfg, chatUser)
		if err != nil {
			log.FromCtx(ctx).Fatal().Err(err).Msg("failed to initialize CLI transport")
		}

		err = rl.Start(ctx)

		_ = rl.Shutdown(ctx)
		for _, c := range cleanups {
			if serr := c.Shutdown(ctx); serr != nil {
				log.FromCtx(ctx).Error().Err(serr).Msg("cleanup failed")
			}
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "", "user id for this session")
	rootCmd.AddCommand(chatCmd)
}

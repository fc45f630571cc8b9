package main

import (
	"context"
	"os"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "memora",
	Short: "Memora, a question-answering assistant with long-term user memory",
	Long: `Memora answers questions with retrieved reference material and
remembers facts about each user across sessions, reconciling new
statements against what it already knows.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/providers/llm"
	"github.com/sandevgo/memora/internal/providers/vectordb"
	"github.com/sandevgo/memora/pkg/log"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Index reference documents for retrieval",
	Long:  `Reads text and markdown files, chunks them and adds them to the vector index used to answer questions.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		logger := log.FromCtx(ctx)

		appCfg := config.NewAppConfig(ctx)
		embCfg := config.NewEmbeddingsConfig(ctx)

		embedder := llm.NewEmbeddingsProvider(embCfg)
		index, err := vectordb.NewChromemIndex(embedder, appCfg.GetIndexPath())
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}

		chunkCfg := vectordb.DefaultChunkerConfig()
		files := 0
		chunks := 0

		for _, root := range args {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || !isTextFile(path) {
					return nil
				}

				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}

				source := filepath.Base(path)
				for _, c := range vectordb.ChunkText(string(data), chunkCfg) {
					id := fmt.Sprintf("%s#%d", source, c.Index)
					if err := index.Add(ctx, id, c.Text, source); err != nil {
						return fmt.Errorf("index %s: %w", id, err)
					}
					chunks++
				}
				files++
				logger.Info().Str("file", path).Msg("indexed")
				return nil
			})
			if err != nil {
				return err
			}
		}

		if err := index.Persist(); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}

		logger.Info().Int("files", files).Int("chunks", chunks).Int("total", index.Count()).Msg("ingestion completed")
		return nil
	},
}

func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	default:
		return false
	}
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

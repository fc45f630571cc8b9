package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/sandevgo/memora/internal/core"
)

const collectionName = "knowledge"

// ChromemIndex implements core.VectorIndex on top of chromem-go. The
// database lives in memory and is snapshotted to a single gob file
// under dir between runs.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
	dir        string
}

func toChromemFunc(e core.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.Embed(ctx, text)
	}
}

func NewChromemIndex(embedder core.Embedder, dir string) (*ChromemIndex, error) {
	db := chromem.NewDB()
	ef := toChromemFunc(embedder)

	idx := &ChromemIndex{db: db, embedFunc: ef, dir: dir}
	if dir != "" {
		if _, err := os.Stat(idx.snapshotPath()); err == nil {
			if err := db.ImportFromFile(idx.snapshotPath(), ""); err != nil {
				return nil, fmt.Errorf("import index: %w", err)
			}
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	idx.collection = col
	return idx, nil
}

func (s *ChromemIndex) snapshotPath() string {
	return filepath.Join(s.dir, "chromem.gob.gz")
}

func (s *ChromemIndex) Add(ctx context.Context, id, content, source string) error {
	doc := chromem.Document{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			"source": source,
		},
	}
	return s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1)
}

func (s *ChromemIndex) Search(ctx context.Context, query string, k int) ([]core.Fragment, error) {
	if k <= 0 {
		k = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	fragments := make([]core.Fragment, len(results))
	for i, r := range results {
		fragments[i] = core.Fragment{
			Text:   r.Content,
			Source: r.Metadata["source"],
			Score:  float64(r.Similarity),
		}
	}
	return fragments, nil
}

func (s *ChromemIndex) Count() int {
	return s.collection.Count()
}

// Persist snapshots the index to disk. Best effort, callers may ignore
// the error on shutdown.
func (s *ChromemIndex) Persist() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return s.db.ExportToFile(s.snapshotPath(), true, "")
}

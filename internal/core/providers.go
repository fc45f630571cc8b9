package core

import "context"

// PromptRole names a prompt template with a fixed input/output contract.
type PromptRole string

const (
	RoleAnswerGeneration         PromptRole = "answer_generation"
	RoleFactExtraction           PromptRole = "fact_extraction"
	RoleFactMerging              PromptRole = "fact_merging"
	RoleMemorySummarization      PromptRole = "memory_summarization"
	RoleComplexityClassification PromptRole = "complexity_classification"
)

// LanguageModel is a stateless prompt-in/text-out collaborator. The caller
// validates the returned text against the role's expected output shape.
type LanguageModel interface {
	Invoke(ctx context.Context, role PromptRole, vars map[string]string) (string, error)
}

// Fragment is one retrieved reference passage with its source label.
type Fragment struct {
	Text   string
	Source string
	Score  float64
}

// VectorIndex performs similarity search over the reference-document index.
type VectorIndex interface {
	Search(ctx context.Context, query string, k int) ([]Fragment, error)
}

// Embedder turns text into a vector. Used by the vector index backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

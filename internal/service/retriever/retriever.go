// Package retriever assembles the reference context for a turn: a
// fact-aware similarity query, priority re-ranking, and budgeted
// boundary-safe truncation of the retrieved fragments.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

type Retriever struct {
	index core.VectorIndex
	cfg   *config.RetrievalConfig
}

func New(index core.VectorIndex, cfg *config.RetrievalConfig) *Retriever {
	return &Retriever{index: index, cfg: cfg}
}

// Retrieve runs the similarity search and returns budgeted fragments in
// their final prompt order. The query carries a short summary of the
// user's highest-confidence facts so retrieval knows the user's domain
// without leaking the whole fact map.
func (r *Retriever) Retrieve(ctx context.Context, question string, facts map[string]core.Fact) ([]core.Fragment, error) {
	query := buildQuery(question, facts)

	fragments, err := r.index.Search(ctx, query, r.cfg.SearchK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	if len(fragments) == 0 {
		return nil, nil
	}

	fragments = rerank(fragments, question)
	budgeted := r.applyBudget(fragments)

	log.FromCtx(ctx).Debug().
		Int("retrieved", len(fragments)).
		Int("kept", len(budgeted)).
		Msg("context retrieval completed")
	return budgeted, nil
}

// buildQuery appends up to three high-confidence facts to the question.
func buildQuery(question string, facts map[string]core.Fact) string {
	keys := core.SortedFactKeys(facts)

	var summary []string
	for _, k := range keys {
		f := facts[k]
		if f.Confidence < 0.8 {
			break
		}
		summary = append(summary, fmt.Sprintf("%s: %v", k, f.Value))
		if len(summary) == 3 {
			break
		}
	}

	if len(summary) == 0 {
		return question
	}
	return question + "\n" + strings.Join(summary, "; ")
}

// rerank orders fragments by similarity plus a document-type boost, with
// ties broken by the original similarity rank.
func rerank(fragments []core.Fragment, question string) []core.Fragment {
	type ranked struct {
		frag     core.Fragment
		combined float64
		orig     int
	}

	rs := make([]ranked, len(fragments))
	for i, f := range fragments {
		rs[i] = ranked{
			frag:     f,
			combined: f.Score + priorityWeight(f.Source, question),
			orig:     i,
		}
	}

	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].combined != rs[j].combined {
			return rs[i].combined > rs[j].combined
		}
		return rs[i].orig < rs[j].orig
	})

	out := make([]core.Fragment, len(rs))
	for i, r := range rs {
		out[i] = r.frag
	}
	return out
}

// priorityWeight boosts document categories matching the question shape.
func priorityWeight(source, question string) float64 {
	s := strings.ToLower(source)
	q := strings.ToLower(strings.TrimSpace(question))

	switch {
	case strings.HasPrefix(q, "how") && strings.Contains(s, "guide"):
		return 0.15
	case (strings.HasPrefix(q, "what") || strings.HasPrefix(q, "who")) && strings.Contains(s, "faq"):
		return 0.15
	case strings.Contains(s, "reference"):
		return 0.05
	default:
		return 0
	}
}

// applyBudget enforces the per-document and total character budgets.
// Fragments are truncated at natural boundaries, never mid-sentence.
func (r *Retriever) applyBudget(fragments []core.Fragment) []core.Fragment {
	var out []core.Fragment
	total := 0
	for _, f := range fragments {
		text := truncateAtBoundary(f.Text, r.cfg.PerDocChars)
		if text == "" {
			continue
		}
		if total+len(text) > r.cfg.TotalChars {
			remaining := r.cfg.TotalChars - total
			text = truncateAtBoundary(text, remaining)
			if text == "" {
				break
			}
		}
		f.Text = text
		out = append(out, f)
		total += len(text)
		if total >= r.cfg.TotalChars {
			break
		}
	}
	return out
}

// truncateAtBoundary cuts text to at most max characters, preferring a
// paragraph break, then a sentence end. Text with no boundary inside the
// budget is dropped entirely rather than cut mid-sentence.
func truncateAtBoundary(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 {
		return ""
	}
	if len(text) <= max {
		return text
	}

	window := text[:max]
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return strings.TrimSpace(window[:idx])
	}

	boundary := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(window, sep); idx > boundary {
			boundary = idx
		}
	}
	if boundary > 0 {
		return strings.TrimSpace(window[:boundary+1])
	}
	return ""
}

package retriever

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
)

type fakeIndex struct {
	fragments []core.Fragment
	err       error
	lastQuery string
	lastK     int
}

func (f *fakeIndex) Search(_ context.Context, query string, k int) ([]core.Fragment, error) {
	f.lastQuery = query
	f.lastK = k
	return f.fragments, f.err
}

func testConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{
		SearchK:        8,
		PerDocChars:    1200,
		TotalChars:     4800,
		MaxAnswerChars: 8000,
	}
}

func TestRetrieveBuildsFactAwareQuery(t *testing.T) {
	idx := &fakeIndex{}
	r := New(idx, testConfig())

	facts := map[string]core.Fact{
		"state":         {Key: "state", Value: "Texas", Confidence: 0.95},
		"business_type": {Key: "business_type", Value: "LLC", Confidence: 0.9},
		"hobby":         {Key: "hobby", Value: "sailing", Confidence: 0.4}, // below threshold
	}

	if _, err := r.Retrieve(context.Background(), "what filings do I need?", facts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(idx.lastQuery, "what filings do I need?") {
		t.Errorf("query must start with the question, got %q", idx.lastQuery)
	}
	if !strings.Contains(idx.lastQuery, "state: Texas") {
		t.Errorf("query must carry high-confidence facts, got %q", idx.lastQuery)
	}
	if strings.Contains(idx.lastQuery, "sailing") {
		t.Errorf("low-confidence facts must not leak into the query, got %q", idx.lastQuery)
	}
	if idx.lastK != 8 {
		t.Errorf("k = %d, want 8", idx.lastK)
	}
}

func TestRetrievePropagatesIndexFailure(t *testing.T) {
	idx := &fakeIndex{err: fmt.Errorf("index offline")}
	r := New(idx, testConfig())

	if _, err := r.Retrieve(context.Background(), "anything", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRerankBoostsMatchingDocType(t *testing.T) {
	fragments := []core.Fragment{
		{Text: "a", Source: "notes.md", Score: 0.80},
		{Text: "b", Source: "filing-guide.md", Score: 0.75},
		{Text: "c", Source: "misc.md", Score: 0.70},
	}

	got := rerank(fragments, "how do I file my annual report?")
	if got[0].Source != "filing-guide.md" {
		t.Errorf("guide must be boosted for a how-question, got %q first", got[0].Source)
	}
}

func TestRerankTiesKeepOriginalOrder(t *testing.T) {
	fragments := []core.Fragment{
		{Text: "first", Source: "a.md", Score: 0.5},
		{Text: "second", Source: "b.md", Score: 0.5},
	}

	got := rerank(fragments, "tell me about fees")
	if got[0].Text != "first" || got[1].Text != "second" {
		t.Error("equal scores must preserve the original similarity order")
	}
}

func TestTruncateAtBoundary(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		max      int
		expected string
	}{
		{
			name:     "fits untouched",
			text:     "Short text.",
			max:      100,
			expected: "Short text.",
		},
		{
			name:     "cuts at paragraph",
			text:     "First paragraph about fees.\n\nSecond paragraph about forms that runs long.",
			max:      40,
			expected: "First paragraph about fees.",
		},
		{
			name:     "cuts at sentence",
			text:     "One sentence here. Another sentence that will not fit in the budget at all.",
			max:      30,
			expected: "One sentence here.",
		},
		{
			name:     "no boundary inside budget drops text",
			text:     "averylongunbrokenrunoftextwithnoboundarymarkersanywhereatall",
			max:      20,
			expected: "",
		},
		{
			name:     "zero budget",
			text:     "Anything.",
			max:      0,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateAtBoundary(tt.text, tt.max); got != tt.expected {
				t.Errorf("truncateAtBoundary(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.expected)
			}
		})
	}
}

func TestApplyBudgetBoundsTotal(t *testing.T) {
	cfg := &config.RetrievalConfig{SearchK: 8, PerDocChars: 60, TotalChars: 100, MaxAnswerChars: 8000}
	r := New(&fakeIndex{}, cfg)

	fragments := []core.Fragment{
		{Text: "Sentence one is here. Sentence two is here.", Score: 0.9},
		{Text: "Sentence three is here. Sentence four is here.", Score: 0.8},
		{Text: "Sentence five is here. Sentence six is here.", Score: 0.7},
	}

	got := r.applyBudget(fragments)

	total := 0
	for _, f := range got {
		if len(f.Text) > cfg.PerDocChars {
			t.Errorf("fragment exceeds per-doc budget: %d chars", len(f.Text))
		}
		total += len(f.Text)
	}
	if total > cfg.TotalChars {
		t.Errorf("total %d exceeds budget %d", total, cfg.TotalChars)
	}
	if len(got) == 0 {
		t.Fatal("budget should admit at least one fragment")
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r := New(&fakeIndex{}, testConfig())

	got, err := r.Retrieve(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no fragments, got %d", len(got))
	}
}

package vectordb

import (
	"strings"
	"testing"
)

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("", DefaultChunkerConfig()); got != nil {
		t.Errorf("empty input must yield no chunks, got %d", len(got))
	}
	if got := ChunkText("   \n\n  ", DefaultChunkerConfig()); got != nil {
		t.Errorf("whitespace input must yield no chunks, got %d", len(got))
	}
}

func TestChunkTextSmallDocumentStaysWhole(t *testing.T) {
	text := "Annual reports are due in May. Late filings incur a penalty."

	got := ChunkText(text, DefaultChunkerConfig())
	if len(got) != 1 {
		t.Fatalf("chunks = %d, want 1", len(got))
	}
	if got[0].Text != text {
		t.Errorf("text = %q", got[0].Text)
	}
	if got[0].Index != 0 {
		t.Errorf("index = %d", got[0].Index)
	}
	if got[0].TokenSize <= 0 {
		t.Errorf("token size = %d", got[0].TokenSize)
	}
}

func TestChunkTextRespectsTokenBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Every registered company must file its annual report with the state office before the end of May. ")
	}
	cfg := ChunkerConfig{MaxTokens: 60, OverlapTokens: 0}

	got := ChunkText(b.String(), cfg)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if c.TokenSize > cfg.MaxTokens {
			t.Errorf("chunk %d holds %d tokens, budget %d", i, c.TokenSize, cfg.MaxTokens)
		}
		if c.Index != i {
			t.Errorf("chunk %d carries index %d", i, c.Index)
		}
		if !strings.HasSuffix(c.Text, "May.") {
			t.Errorf("chunk %d is not sentence-aligned: %q", i, c.Text)
		}
	}
}

func TestChunkTextOverlapRepeatsBoundarySentence(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Every registered company must file its annual report with the state office before the end of May. ")
	}
	cfg := ChunkerConfig{MaxTokens: 60, OverlapTokens: 25}

	got := ChunkText(b.String(), cfg)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}

	// The sentence count across chunks must exceed the input's 40
	// sentences, since boundary sentences appear twice.
	totalSentences := 0
	for _, c := range got {
		totalSentences += strings.Count(c.Text, "May.")
	}
	if totalSentences <= 40 {
		t.Errorf("overlap missing: %d sentences across chunks", totalSentences)
	}
}

func TestChunkTextSlicesOversizedSentence(t *testing.T) {
	words := make([]string, 300)
	for i := range words {
		words[i] = "filing"
	}
	text := strings.Join(words, " ") // one giant "sentence", no terminator
	cfg := ChunkerConfig{MaxTokens: 50, OverlapTokens: 0}

	got := ChunkText(text, cfg)
	if len(got) < 2 {
		t.Fatalf("oversized sentence must be sliced, got %d chunks", len(got))
	}
	for i, c := range got {
		if c.TokenSize > cfg.MaxTokens {
			t.Errorf("slice %d holds %d tokens, budget %d", i, c.TokenSize, cfg.MaxTokens)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "basic terminators",
			text:     "First one. Second one! Third one?",
			expected: []string{"First one.", "Second one!", "Third one?"},
		},
		{
			name:     "decimal point is not a boundary",
			text:     "The fee is 3.50 dollars. Pay it promptly.",
			expected: []string{"The fee is 3.50 dollars.", "Pay it promptly."},
		},
		{
			name:     "trailing fragment kept",
			text:     "A full sentence. and a trailing fragment",
			expected: []string{"A full sentence.", "and a trailing fragment"},
		},
		{
			name:     "soft wraps joined",
			text:     "One sentence\nwrapped across lines. Another one.",
			expected: []string{"One sentence wrapped across lines.", "Another one."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d sentences %q, want %d", len(got), got, len(tt.expected))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph\nsoft wrapped.\n\nSecond paragraph.\r\n\r\nThird."

	got := splitParagraphs(text)
	want := []string{"First paragraph soft wrapped.", "Second paragraph.", "Third."}
	if len(got) != len(want) {
		t.Fatalf("got %d paragraphs %q", len(got), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, got[i], want[i])
		}
	}
}

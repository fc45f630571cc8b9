package facts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
)

type fakeModel struct {
	replies map[core.PromptRole]string
	err     error
	calls   []core.PromptRole
	lastVar map[string]string
}

func (f *fakeModel) Invoke(_ context.Context, role core.PromptRole, vars map[string]string) (string, error) {
	f.calls = append(f.calls, role)
	f.lastVar = vars
	if f.err != nil {
		return "", f.err
	}
	return f.replies[role], nil
}

func testConfig() *config.MemoryConfig {
	return &config.MemoryConfig{
		AcceptFloor:         0.8,
		RetentionFloor:      0.3,
		WeeklyDecay:         0.98,
		ConflictMargin:      0.25,
		FactCeiling:         48,
		MinExtractTokens:    12,
		MinPromptConfidence: 0.5,
		LogCap:              200,
		HistoryCap:          5,
	}
}

func TestExtractAcceptsValidFacts(t *testing.T) {
	model := &fakeModel{replies: map[core.PromptRole]string{
		core.RoleFactExtraction: `{"facts": {"business_type": {"value": "LLC", "confidence": 0.9}, "state": {"value": "Texas", "confidence": 0.9}}}`,
	}}
	e := NewExtractor(model, testConfig())

	now := time.Now()
	got, err := e.Extract(context.Background(), "I am opening an LLC in Texas", "Great, here is how.", nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(got))
	}

	f := got["state"]
	if f.Value != "Texas" || f.Confidence != 0.9 {
		t.Errorf("state = %v (%.2f), want Texas (0.90)", f.Value, f.Confidence)
	}
	if f.Source != core.SourceExtraction {
		t.Errorf("source = %q, want extraction", f.Source)
	}
	if !f.CreatedAt.Equal(now) {
		t.Errorf("created_at not set to extraction time")
	}
}

func TestExtractToleratesSurroundingProse(t *testing.T) {
	model := &fakeModel{replies: map[core.PromptRole]string{
		core.RoleFactExtraction: "Sure! Here are the facts:\n```json\n{\"facts\": {\"name\": {\"value\": \"Sarah\", \"confidence\": 0.95}}}\n```",
	}}
	e := NewExtractor(model, testConfig())

	got, err := e.Extract(context.Background(), "my name is Sarah", "Nice to meet you.", nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["name"].Value != "Sarah" {
		t.Fatalf("name = %v, want Sarah", got["name"].Value)
	}
}

func TestExtractDropsMalformedEntriesIndividually(t *testing.T) {
	tests := []struct {
		name     string
		response string
		kept     []string
	}{
		{
			name:     "missing confidence",
			response: `{"facts": {"good": {"value": "x", "confidence": 0.9}, "bad": {"value": "y"}}}`,
			kept:     []string{"good"},
		},
		{
			name:     "confidence out of range",
			response: `{"facts": {"good": {"value": "x", "confidence": 0.9}, "bad": {"value": "y", "confidence": 1.4}}}`,
			kept:     []string{"good"},
		},
		{
			name:     "empty value",
			response: `{"facts": {"good": {"value": "x", "confidence": 0.9}, "bad": {"value": "", "confidence": 0.9}}}`,
			kept:     []string{"good"},
		},
		{
			name:     "below accept floor",
			response: `{"facts": {"good": {"value": "x", "confidence": 0.9}, "weak": {"value": "y", "confidence": 0.6}}}`,
			kept:     []string{"good"},
		},
		{
			name:     "key normalized",
			response: `{"facts": {"Business Type": {"value": "LLC", "confidence": 0.9}}}`,
			kept:     []string{"business_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{replies: map[core.PromptRole]string{core.RoleFactExtraction: tt.response}}
			e := NewExtractor(model, testConfig())

			got, err := e.Extract(context.Background(), "q", "a", nil, time.Now())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.kept) {
				t.Fatalf("kept %d facts, want %d", len(got), len(tt.kept))
			}
			for _, k := range tt.kept {
				if _, ok := got[k]; !ok {
					t.Errorf("expected fact %q to survive", k)
				}
			}
		})
	}
}

func TestExtractFailsOnUnusableResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{"model error", "", fmt.Errorf("unreachable")},
		{"no json", "I could not find any facts.", nil},
		{"wrong shape", `{"items": []}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{
				replies: map[core.PromptRole]string{core.RoleFactExtraction: tt.response},
				err:     tt.err,
			}
			e := NewExtractor(model, testConfig())

			if _, err := e.Extract(context.Background(), "q", "a", nil, time.Now()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExtractPassesKnownKeysNotValues(t *testing.T) {
	model := &fakeModel{replies: map[core.PromptRole]string{
		core.RoleFactExtraction: `{"facts": {}}`,
	}}
	e := NewExtractor(model, testConfig())

	_, err := e.Extract(context.Background(), "q", "a", []string{"state", "name"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.lastVar["known_keys"] != "state, name" {
		t.Errorf("known_keys = %q", model.lastVar["known_keys"])
	}
}

package llm

import (
	"strings"
	"testing"

	"github.com/sandevgo/memora/internal/core"
)

func TestRenderPromptFillsPlaceholders(t *testing.T) {
	msgs, err := renderPrompt(core.RoleAnswerGeneration, map[string]string{
		"input":   "when is the report due?",
		"facts":   "- state: Texas",
		"context": "[faq.md]\nReports are due in May.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want system and user", len(msgs))
	}
	if msgs[0].Role != core.RoleSystem || msgs[1].Role != core.RoleUser {
		t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
	if !strings.Contains(msgs[1].Content, "when is the report due?") {
		t.Errorf("user message = %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[1].Content, "- state: Texas") {
		t.Errorf("facts not filled: %q", msgs[1].Content)
	}
	if strings.Contains(msgs[1].Content, "{{") {
		t.Errorf("unfilled placeholder left in %q", msgs[1].Content)
	}
}

func TestRenderPromptUnknownRole(t *testing.T) {
	if _, err := renderPrompt(core.PromptRole("no_such_role"), nil); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRenderPromptBlanksMissingVars(t *testing.T) {
	msgs, err := renderPrompt(core.RoleMemorySummarization, map[string]string{
		"facts": `{"state": "Texas"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ceiling and preserve were not provided; they must vanish, not leak.
	if strings.Contains(msgs[0].Content, "{{") || strings.Contains(msgs[0].Content, "}}") {
		t.Errorf("system message leaks placeholders: %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, `{"state": "Texas"}`) {
		t.Errorf("user message = %q", msgs[1].Content)
	}
}

func TestStripUnfilled(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"no placeholders", "no placeholders"},
		{"a {{x}} b", "a  b"},
		{"{{x}}{{y}}", ""},
		{"dangling {{x", "dangling {{x"},
	}

	for _, tt := range tests {
		if got := stripUnfilled(tt.in); got != tt.expected {
			t.Errorf("stripUnfilled(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestAllRolesRender(t *testing.T) {
	for _, role := range []core.PromptRole{
		core.RoleAnswerGeneration,
		core.RoleFactExtraction,
		core.RoleFactMerging,
		core.RoleMemorySummarization,
		core.RoleComplexityClassification,
	} {
		if _, err := renderPrompt(role, map[string]string{"input": "x"}); err != nil {
			t.Errorf("role %s failed to render: %v", role, err)
		}
	}
}

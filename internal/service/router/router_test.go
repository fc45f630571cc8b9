package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
)

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeModel) Invoke(_ context.Context, _ core.PromptRole, _ map[string]string) (string, error) {
	f.calls++
	return f.reply, f.err
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

func TestClassifyCommand(t *testing.T) {
	tests := []struct {
		input    string
		expected core.CommandType
	}{
		{"!memory", core.CommandMemory},
		{"!memory  ", core.CommandMemory},
		{"!forget my address", core.CommandMemory},
		{"!update name Sarah", core.CommandMemory},
		{"!help", core.CommandMemory},
		{"!export", core.CommandMemory},
		{"!search texas", core.CommandMemory},
		{"!status", core.CommandSystem},
		{"!debug", core.CommandSystem},
		{"!forget", core.CommandQuestion}, // missing argument
		{"!unknown", core.CommandQuestion},
		{"what is an llc?", core.CommandQuestion},
		{"", core.CommandQuestion},
	}

	r := New(&fakeModel{}, testConfig())
	for _, tt := range tests {
		if got := r.ClassifyCommand(tt.input); got != tt.expected {
			t.Errorf("ClassifyCommand(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestQuickClassifyIsDeterministic(t *testing.T) {
	tests := []struct {
		input    string
		expected core.QuestionType
	}{
		{"hi", core.QuestionGreeting},
		{"Hello!", core.QuestionGreeting},
		{"good morning", core.QuestionGreeting},
		{"thanks!", core.QuestionGreeting},
		{"how are you?", core.QuestionGreeting},
		{"what is an llc?", core.QuestionSimple},
		{"who is the mayor?", core.QuestionSimple},
		{"my name is Sarah", core.QuestionComplex},
		{"i am opening a bakery", core.QuestionComplex},
		{"call me Sam", core.QuestionComplex},
		{"tell me everything about forming a corporation in delaware", core.QuestionUnclassified},
	}

	for _, tt := range tests {
		for i := 0; i < 3; i++ {
			if got := quickClassify(tt.input); got != tt.expected {
				t.Errorf("quickClassify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		}
	}
}

func TestClassifyQuestionEscalatesToModel(t *testing.T) {
	model := &fakeModel{reply: "SIMPLE"}
	r := New(model, testConfig())

	got := r.ClassifyQuestion(context.Background(), "could you summarize current filing requirements", nil)
	if got != core.QuestionSimple {
		t.Fatalf("expected simple, got %q", got)
	}
	if model.calls != 1 {
		t.Fatalf("expected one model call, got %d", model.calls)
	}
}

func TestClassifyQuestionDefaultsToComplex(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{err: fmt.Errorf("unreachable")}},
		{"unclear reply", &fakeModel{reply: "banana"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.model, testConfig())
			got := r.ClassifyQuestion(context.Background(), "could you walk me through the filings", nil)
			if got != core.QuestionComplex {
				t.Fatalf("expected complex, got %q", got)
			}
		})
	}
}

func TestClassifyQuestionHeuristicSkipsModel(t *testing.T) {
	model := &fakeModel{reply: "COMPLEX"}
	r := New(model, testConfig())

	r.ClassifyQuestion(context.Background(), "hello", nil)
	if model.calls != 0 {
		t.Fatalf("greeting should not reach the model, got %d calls", model.calls)
	}
}

func TestShouldExtractFacts(t *testing.T) {
	existing := map[string]core.Fact{
		"state":         {Key: "state", Value: "Texas", Confidence: 0.9},
		"business_type": {Key: "business_type", Value: "LLC", Confidence: 0.9},
	}

	tests := []struct {
		name         string
		conversation string
		facts        map[string]core.Fact
		expected     bool
	}{
		{
			name:         "too short",
			conversation: "ok",
			facts:        existing,
			expected:     false,
		},
		{
			name:         "purely social",
			conversation: "hello there, thanks a lot, nice to meet you, goodbye for now",
			facts:        existing,
			expected:     false,
		},
		{
			name:         "no existing facts",
			conversation: "could you please give me a very detailed walkthrough of the full document you retrieved earlier",
			facts:        nil,
			expected:     true,
		},
		{
			name:         "factual statement",
			conversation: "i am planning to open an llc for my consulting business with 3 employees next year",
			facts:        existing,
			expected:     true,
		},
		{
			name:         "no factual content",
			conversation: "could you please give me a very detailed walkthrough of the full document you retrieved earlier",
			facts:        existing,
			expected:     false,
		},
		{
			name:         "restates known facts only",
			conversation: "as a reminder the company is an llc registered in texas just like before",
			facts:        existing,
			expected:     false, // both facts are already stored at high confidence
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&fakeModel{}, testConfig())
			if got := r.ShouldExtractFacts(context.Background(), tt.conversation, tt.facts); got != tt.expected {
				t.Errorf("ShouldExtractFacts(%q) = %v, want %v", tt.conversation, got, tt.expected)
			}
		})
	}
}

func TestMetricsSnapshot(t *testing.T) {
	r := New(&fakeModel{reply: "COMPLEX"}, testConfig())

	r.ClassifyCommand("!memory")
	r.ClassifyQuestion(context.Background(), "hi", nil)
	r.ClassifyQuestion(context.Background(), "please compare the two filing options in depth", nil)

	snap := r.Metrics().Snapshot()
	if snap["command_detections"] != 1 {
		t.Errorf("command_detections = %d, want 1", snap["command_detections"])
	}
	if snap["greetings"] != 1 {
		t.Errorf("greetings = %d, want 1", snap["greetings"])
	}
	if snap["complex_questions"] != 1 {
		t.Errorf("complex_questions = %d, want 1", snap["complex_questions"])
	}
}

func TestMetricsCountEachTurnOnce(t *testing.T) {
	r := New(&fakeModel{reply: "COMPLEX"}, testConfig())

	// A question turn passes through both classifiers.
	input := "please compare the two filing options in depth"
	if got := r.ClassifyCommand(input); got != core.CommandQuestion {
		t.Fatalf("ClassifyCommand(%q) = %v, want question", input, got)
	}
	r.ClassifyQuestion(context.Background(), input, nil)

	snap := r.Metrics().Snapshot()
	if snap["total_classifications"] != 1 {
		t.Errorf("total_classifications = %d, want 1", snap["total_classifications"])
	}
	if snap["complex_questions"] != 1 {
		t.Errorf("complex_questions = %d, want 1", snap["complex_questions"])
	}
}

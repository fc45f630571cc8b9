// Package workflow drives one user turn through the orchestration state
// machine: classification, context retrieval, answer generation, fact
// extraction and the final memory write.
package workflow

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/memora/internal/core"
)

// State machine nodes, in visit order along the longest path. Node names
// are recorded verbatim in WorkflowPath for routing analytics.
const (
	NodeClassify           = "classify"
	NodeHandleCommand      = "handle_command"
	NodeLightweightRespond = "lightweight_respond"
	NodeRetrieveContext    = "retrieve_context"
	NodeGenerateAnswer     = "generate_answer"
	NodeDecideExtraction   = "decide_extraction"
	NodeExtractFacts       = "extract_facts"
	NodeMergeFacts         = "merge_facts"
	NodePersist            = "persist"
	NodeSkipPersist        = "skip_persist"
)

// TurnState is the typed record threaded through a single turn. Fields
// past RawInput are filled in as nodes execute; a field is only valid
// after its producing node appears in Path.
type TurnState struct {
	TurnID   string
	UserID   string
	RawInput string

	CommandType  core.CommandType
	QuestionType core.QuestionType

	Memory        *core.UserMemory
	RetrievedDocs []core.Fragment
	Answer        string
	ProposedFacts map[string]core.Fact

	Path       []string
	Durations  map[string]time.Duration
	NodeErrors []*core.NodeError

	StartedAt time.Time
}

func newTurnState(userID, input string, now time.Time) *TurnState {
	return &TurnState{
		TurnID:    uuid.NewString(),
		UserID:    userID,
		RawInput:  input,
		Durations: make(map[string]time.Duration),
		StartedAt: now,
	}
}

func (s *TurnState) visit(node string) {
	s.Path = append(s.Path, node)
}

func (s *TurnState) fail(node string, kind, err error) {
	s.NodeErrors = append(s.NodeErrors, core.NewNodeError(node, kind, err))
}

// TurnResult describes what one turn accomplished. Run never returns an
// error for in-pipeline failures; everything short of cancellation is
// folded in here so the caller always has an answer to show.
type TurnResult struct {
	TurnID         string
	Answer         string
	MemoryUpdated  bool
	QuestionType   core.QuestionType
	CommandType    core.CommandType
	WorkflowPath   []string
	Durations      map[string]time.Duration
	NodeErrors     []*core.NodeError
	FactsExtracted []string
}

// Degraded reports whether any node fell back during the turn.
func (r *TurnResult) Degraded() bool {
	return len(r.NodeErrors) > 0
}

func (s *TurnState) result(memoryUpdated bool) *TurnResult {
	var extracted []string
	for k := range s.ProposedFacts {
		extracted = append(extracted, k)
	}
	sort.Strings(extracted)

	return &TurnResult{
		TurnID:         s.TurnID,
		Answer:         s.Answer,
		MemoryUpdated:  memoryUpdated,
		QuestionType:   s.QuestionType,
		CommandType:    s.CommandType,
		WorkflowPath:   s.Path,
		Durations:      s.Durations,
		NodeErrors:     s.NodeErrors,
		FactsExtracted: extracted,
	}
}

package core

import (
	"sort"
	"time"
)

const (
	AppName    = "Memora"
	AppVersion = "0.1.0"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// CommandType is the coarse classification of one incoming message.
type CommandType string

const (
	CommandQuestion CommandType = "question"
	CommandMemory   CommandType = "memory_command"
	CommandSystem   CommandType = "system_command"
)

// QuestionType is the complexity classification used for routing. It stays
// empty until the router has classified the turn.
type QuestionType string

const (
	QuestionUnclassified QuestionType = ""
	QuestionGreeting     QuestionType = "greeting"
	QuestionSimple       QuestionType = "simple"
	QuestionComplex      QuestionType = "complex"
)

// FactSource records where a fact came from.
type FactSource string

const (
	SourceExtraction FactSource = "extraction"
	SourceUserStated FactSource = "user_stated"
	SourceInference  FactSource = "inference"
)

// Fact is a single belief about a user. Confidence is always within [0,1];
// values below the retention floor are removed during merge passes.
// Facts are mutated only by the merger; the extractor only proposes.
type Fact struct {
	Key           string         `json:"key"`
	Value         any            `json:"value"`
	Confidence    float64        `json:"confidence"`
	Source        FactSource     `json:"source"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
	UpdateCount   int            `json:"update_count"`
	// LastDecayAt marks the moment decay was last applied, so repeated
	// merge passes at the same instant do not compound the decay.
	LastDecayAt time.Time      `json:"last_decay_at,omitzero"`
	History     []FactRevision `json:"history,omitempty"`
}

// FactRevision preserves a superseded value so conflict resolution and key
// consolidation never destroy information.
type FactRevision struct {
	Value      any       `json:"value"`
	Confidence float64   `json:"confidence"`
	Note       string    `json:"note,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ConversationTurn is one message in the persisted log. Append-only.
type ConversationTurn struct {
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	FactsExtracted []string  `json:"facts_extracted,omitempty"`
}

// UserMemory is the persisted aggregate per user: the whole document is the
// unit of read-modify-write against the MemoryStore.
type UserMemory struct {
	UserID        string             `json:"user_id"`
	Facts         map[string]Fact    `json:"facts"`
	Log           []ConversationTurn `json:"conversation_log"`
	CreatedAt     time.Time          `json:"created_at"`
	LastUpdatedAt time.Time          `json:"last_updated_at"`
}

// NewUserMemory creates an empty memory document for first contact.
func NewUserMemory(userID string, now time.Time) *UserMemory {
	return &UserMemory{
		UserID:        userID,
		Facts:         make(map[string]Fact),
		Log:           nil,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// SortedFactKeys returns the fact keys ordered by confidence (descending),
// ties broken alphabetically so output is stable.
func SortedFactKeys(facts map[string]Fact) []string {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		fi, fj := facts[keys[i]], facts[keys[j]]
		if fi.Confidence != fj.Confidence {
			return fi.Confidence > fj.Confidence
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Clone deep-copies the document so a turn can work on a snapshot without
// aliasing the stored one.
func (m *UserMemory) Clone() *UserMemory {
	if m == nil {
		return nil
	}
	out := &UserMemory{
		UserID:        m.UserID,
		Facts:         make(map[string]Fact, len(m.Facts)),
		Log:           make([]ConversationTurn, len(m.Log)),
		CreatedAt:     m.CreatedAt,
		LastUpdatedAt: m.LastUpdatedAt,
	}
	for k, f := range m.Facts {
		if len(f.History) > 0 {
			f.History = append([]FactRevision(nil), f.History...)
		}
		out.Facts[k] = f
	}
	copy(out.Log, m.Log)
	for i := range out.Log {
		if len(out.Log[i].FactsExtracted) > 0 {
			out.Log[i].FactsExtracted = append([]string(nil), out.Log[i].FactsExtracted...)
		}
	}
	return out
}

package llm

import (
	"fmt"
	"strings"

	"github.com/sandevgo/memora/internal/core"
)

// Each prompt role maps to a system/user template pair. Placeholders use
// the {{name}} form and are filled from the vars map at invoke time;
// placeholders with no matching var render as empty strings.
type promptTemplate struct {
	system string
	user   string
}

var prompts = map[core.PromptRole]promptTemplate{
	core.RoleComplexityClassification: {
		system: "You classify user messages for a conversational assistant. " +
			"Reply with exactly one word: GREETING, SIMPLE, or COMPLEX. " +
			"GREETING is a salutation with no question. SIMPLE is a short factual " +
			"question answerable without background context. Everything else is COMPLEX.",
		user: "Message: {{input}}",
	},
	core.RoleAnswerGeneration: {
		system: "You are a helpful assistant with long-term memory of the user. " +
			"Use the known facts and retrieved context when they are relevant, " +
			"and never contradict a known fact. Be concise and direct.",
		user: "Known facts about the user:\n{{facts}}\n\nRetrieved context:\n{{context}}\n\nUser message: {{input}}",
	},
	core.RoleFactExtraction: {
		system: "You extract durable facts about the user from their message. " +
			"Return only JSON of the form " +
			`{"facts": {"key": {"value": ..., "confidence": 0.0}}}` + ". " +
			"Keys are lower_snake_case. Confidence is your certainty the fact is " +
			"true and durable, between 0 and 1. Extract nothing from small talk; " +
			"an empty facts object is a valid answer.",
		user: "Known fact keys: {{known_keys}}\n\nUser message: {{input}}",
	},
	core.RoleFactMerging: {
		system: "You resolve conflicts between stored facts and newly extracted " +
			"facts about the same user. For each conflict decide which value to " +
			"keep. Prefer the newer value when the user plainly restated the fact; " +
			"prefer the stored value when the new one looks like a misreading. " +
			"Return only JSON: " +
			`{"resolutions": {"key": {"value": ..., "confidence": 0.0, "note": "why"}}}` + ".",
		user: "Conflicts:\n{{conflicts}}",
	},
	core.RoleMemorySummarization: {
		system: "You compact a user's fact map that has grown too large. Merge " +
			"redundant keys and drop trivia, keeping at most {{ceiling}} facts. " +
			"The following keys must be preserved with their values unchanged: " +
			"{{preserve}}. Return only JSON of the form " +
			`{"facts": {"key": {"value": ..., "confidence": 0.0}}}` + ".",
		user: "Current facts:\n{{facts}}",
	},
}

func renderPrompt(role core.PromptRole, vars map[string]string) ([]Message, error) {
	tpl, ok := prompts[role]
	if !ok {
		return nil, fmt.Errorf("unknown prompt role: %s", role)
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)

	messages := []Message{
		{Role: core.RoleSystem, Content: stripUnfilled(r.Replace(tpl.system))},
		{Role: core.RoleUser, Content: stripUnfilled(r.Replace(tpl.user))},
	}
	return messages, nil
}

// stripUnfilled blanks placeholders the caller provided no value for.
func stripUnfilled(s string) string {
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			return s
		}
		s = s[:start] + s[start+end+2:]
	}
}

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

const helpText = `Available commands:
  !memory          show everything I remember about you
  !forget <topic>  remove facts matching a topic
  !update <key> <value>  set a fact directly
  !search <keyword>  find facts matching a keyword
  !export          dump your memory as JSON
  !status          show routing statistics
  !help            this message`

// handleCommand executes a ! command directly against the store and
// returns the confirmation text plus whether memory was modified.
func (e *Engine) handleCommand(ctx context.Context, st *TurnState) (string, bool, error) {
	fields := strings.Fields(strings.TrimSpace(st.RawInput))
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "!memory":
		return e.showMemory(st), false, nil
	case "!help":
		return helpText, false, nil
	case "!export":
		return e.exportMemory(st)
	case "!search":
		return e.searchFacts(st, strings.Join(args, " ")), false, nil
	case "!forget":
		return e.forgetFacts(ctx, st, strings.Join(args, " "))
	case "!update":
		return e.updateFact(ctx, st, args)
	case "!status":
		return e.showStatus(st), false, nil
	case "!debug":
		return e.showDebug(st), false, nil
	default:
		return "Unknown command. Type !help for the list.", false, nil
	}
}

func (e *Engine) showMemory(st *TurnState) string {
	if len(st.Memory.Facts) == 0 {
		return "I don't have any facts stored about you yet."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("I know %d things about you:\n", len(st.Memory.Facts)))
	for _, k := range core.SortedFactKeys(st.Memory.Facts) {
		f := st.Memory.Facts[k]
		b.WriteString(fmt.Sprintf("  %s: %v (confidence %.2f)\n", k, f.Value, f.Confidence))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) exportMemory(st *TurnState) (string, bool, error) {
	data, err := json.MarshalIndent(st.Memory, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("export: %w", err)
	}
	return string(data), false, nil
}

func (e *Engine) searchFacts(st *TurnState, keyword string) string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return "Usage: !search <keyword>"
	}

	var matches []string
	for _, k := range core.SortedFactKeys(st.Memory.Facts) {
		f := st.Memory.Facts[k]
		if strings.Contains(strings.ToLower(k), keyword) ||
			strings.Contains(strings.ToLower(fmt.Sprintf("%v", f.Value)), keyword) {
			matches = append(matches, fmt.Sprintf("  %s: %v", k, f.Value))
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No facts match %q.", keyword)
	}
	return fmt.Sprintf("Facts matching %q:\n%s", keyword, strings.Join(matches, "\n"))
}

func (e *Engine) forgetFacts(ctx context.Context, st *TurnState, topic string) (string, bool, error) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return "Usage: !forget <topic>", false, nil
	}

	var removed []string
	for k, f := range st.Memory.Facts {
		if strings.Contains(strings.ToLower(k), topic) ||
			strings.Contains(strings.ToLower(fmt.Sprintf("%v", f.Value)), topic) {
			removed = append(removed, k)
		}
	}
	if len(removed) == 0 {
		return fmt.Sprintf("Nothing stored matches %q.", topic), false, nil
	}

	for _, k := range removed {
		delete(st.Memory.Facts, k)
	}
	sort.Strings(removed)

	now := e.clock()
	st.Memory.LastUpdatedAt = now
	if err := e.store.Put(ctx, st.UserID, st.Memory); err != nil {
		return "", false, fmt.Errorf("memory write: %w", err)
	}

	log.FromCtx(ctx).Info().Strs("keys", removed).Msg("facts forgotten by user request")
	return fmt.Sprintf("Forgotten: %s.", strings.Join(removed, ", ")), true, nil
}

func (e *Engine) updateFact(ctx context.Context, st *TurnState, args []string) (string, bool, error) {
	if len(args) < 2 {
		return "Usage: !update <key> <value>", false, nil
	}
	key := strings.ToLower(args[0])
	value := strings.Join(args[1:], " ")

	now := e.clock()
	old, existed := st.Memory.Facts[key]
	f := core.Fact{
		Key:           key,
		Value:         value,
		Confidence:    1.0,
		Source:        core.SourceUserStated,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if existed {
		f.CreatedAt = old.CreatedAt
		f.UpdateCount = old.UpdateCount + 1
		f.History = append(old.History, core.FactRevision{
			Value:      old.Value,
			Confidence: old.Confidence,
			Note:       "replaced by !update",
			RecordedAt: now,
		})
		if limit := e.memCfg.HistoryCap; limit > 0 && len(f.History) > limit {
			f.History = f.History[len(f.History)-limit:]
		}
	}
	st.Memory.Facts[key] = f
	st.Memory.LastUpdatedAt = now

	if err := e.store.Put(ctx, st.UserID, st.Memory); err != nil {
		return "", false, fmt.Errorf("memory write: %w", err)
	}
	return fmt.Sprintf("Updated %s to %q.", key, value), true, nil
}

func (e *Engine) showStatus(st *TurnState) string {
	snap := e.router.Metrics().Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n", core.AppName, core.AppVersion))
	b.WriteString(fmt.Sprintf("facts stored: %d\n", len(st.Memory.Facts)))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s: %d\n", k, snap[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) showDebug(st *TurnState) string {
	return fmt.Sprintf("turn %s | user %s | %d facts | %d log entries",
		st.TurnID, st.UserID, len(st.Memory.Facts), len(st.Memory.Log))
}

package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

// identityCriticalKeys are preserved verbatim through summarization.
var identityCriticalKeys = []string{"name", "business_type", "industry", "state", "jurisdiction"}

type Merger struct {
	model core.LanguageModel
	cfg   *config.MemoryConfig
}

func NewMerger(model core.LanguageModel, cfg *config.MemoryConfig) *Merger {
	return &Merger{model: model, cfg: cfg}
}

// Result is the reconciled fact map. Changed reports whether it differs
// from the existing map the merge started from.
type Result struct {
	Facts   map[string]core.Fact
	Changed bool
}

// Merge reconciles proposed facts into the existing map: direct inserts,
// batch conflict resolution, duplicate-key consolidation, confidence
// decay and, when the map has grown past the ceiling, summarization.
//
// A resolver failure is returned as a non-fatal error: the result is
// still valid and keeps the existing values for every unresolved
// conflict. Extraction must never silently overwrite stable memory.
func (m *Merger) Merge(ctx context.Context, existing, proposed map[string]core.Fact, now time.Time) (Result, error) {
	logger := log.FromCtx(ctx)

	result := make(map[string]core.Fact, len(existing)+len(proposed))
	for k, f := range existing {
		result[k] = f
	}

	changed := false
	touched := make(map[string]bool)
	var conflicts []conflictEntry

	for key, p := range proposed {
		old, ok := result[key]
		if !ok {
			result[key] = p
			touched[key] = true
			changed = true
			continue
		}

		if !materiallyDifferent(old.Value, p.Value) {
			// Restatement of a known fact refreshes it.
			if p.Confidence > old.Confidence {
				old.Confidence = p.Confidence
				changed = true
			}
			old.LastUpdatedAt = now
			old.UpdateCount++
			result[key] = old
			touched[key] = true
			continue
		}

		conflicts = append(conflicts, conflictEntry{
			Key:                key,
			Existing:           old.Value,
			ExistingConfidence: old.Confidence,
			ExistingUpdatedAt:  old.LastUpdatedAt.Format(time.RFC3339),
			Proposed:           p.Value,
			ProposedConfidence: p.Confidence,
		})
	}

	var mergeErr error
	if len(conflicts) > 0 {
		resolutions, err := m.resolveConflicts(ctx, conflicts)
		if err != nil {
			// Existing facts win when the resolver is unavailable.
			logger.Warn().Err(err).Int("conflicts", len(conflicts)).Msg("conflict resolution failed, keeping existing facts")
			mergeErr = fmt.Errorf("resolve conflicts: %w", err)
		}
		for _, c := range conflicts {
			res, ok := resolutions[c.Key]
			if !ok || res.Confidence == nil || *res.Confidence < 0 || *res.Confidence > 1 || res.Value == nil {
				continue
			}
			old := result[c.Key]
			if materiallyDifferent(old.Value, res.Value) {
				old.History = appendRevision(old.History, core.FactRevision{
					Value:      old.Value,
					Confidence: old.Confidence,
					Note:       res.Note,
					RecordedAt: now,
				}, m.cfg.HistoryCap)
				old.Value = res.Value
				old.Source = core.SourceExtraction
			}
			old.Confidence = *res.Confidence
			old.LastUpdatedAt = now
			old.UpdateCount++
			result[c.Key] = old
			touched[c.Key] = true
			changed = true
		}
	}

	if m.consolidate(ctx, result, touched, now) {
		changed = true
	}

	if m.decay(result, touched, now) {
		changed = true
	}

	if len(result) > m.cfg.FactCeiling {
		if m.summarize(ctx, result, now) {
			changed = true
		}
	}

	// The retention floor holds no matter which stage produced the
	// confidence: resolver and summarizer output lands here too, not
	// just decayed facts.
	for k, f := range result {
		if f.Confidence < m.cfg.RetentionFloor {
			logger.Debug().Str("key", k).Float64("confidence", f.Confidence).Msg("dropping fact below retention floor")
			delete(result, k)
			changed = true
		}
	}

	return Result{Facts: result, Changed: changed}, mergeErr
}

type conflictEntry struct {
	Key                string  `json:"key"`
	Existing           any     `json:"existing_value"`
	ExistingConfidence float64 `json:"existing_confidence"`
	ExistingUpdatedAt  string  `json:"existing_updated_at"`
	Proposed           any     `json:"proposed_value"`
	ProposedConfidence float64 `json:"proposed_confidence"`
}

type resolution struct {
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence"`
	Note       string   `json:"note"`
}

// resolveConflicts makes one model call for the whole conflict batch.
func (m *Merger) resolveConflicts(ctx context.Context, conflicts []conflictEntry) (map[string]resolution, error) {
	blob, err := json.Marshal(conflicts)
	if err != nil {
		return nil, fmt.Errorf("marshal conflicts: %w", err)
	}

	payload := fmt.Sprintf(
		"Prefer the most recent, most specific, highest-confidence statement unless it contradicts a stored fact whose confidence is higher by more than %.2f.\n%s",
		m.cfg.ConflictMargin, blob,
	)

	resp, err := m.model.Invoke(ctx, core.RoleFactMerging, map[string]string{
		"conflicts": payload,
	})
	if err != nil {
		return nil, fmt.Errorf("llm invoke: %w", err)
	}

	jsonStr := extractJSONObject(resp)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object in resolver response")
	}

	var parsed struct {
		Resolutions map[string]resolution `json:"resolutions"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal resolutions: %w", err)
	}
	return parsed.Resolutions, nil
}

// consolidate folds keys that are word-level permutations of each other
// (e.g. business_type and type_of_business) into the higher-confidence
// one. The losing value is preserved in the survivor's history.
func (m *Merger) consolidate(ctx context.Context, result map[string]core.Fact, touched map[string]bool, now time.Time) bool {
	byWords := make(map[string][]string)
	for k := range result {
		w := wordSet(k)
		byWords[w] = append(byWords[w], k)
	}

	changed := false
	for _, keys := range byWords {
		if len(keys) < 2 {
			continue
		}
		sort.Slice(keys, func(i, j int) bool {
			fi, fj := result[keys[i]], result[keys[j]]
			if fi.Confidence != fj.Confidence {
				return fi.Confidence > fj.Confidence
			}
			return keys[i] < keys[j]
		})

		canonical := result[keys[0]]
		for _, loser := range keys[1:] {
			f := result[loser]
			canonical.History = appendRevision(canonical.History, core.FactRevision{
				Value:      f.Value,
				Confidence: f.Confidence,
				Note:       "consolidated from " + loser,
				RecordedAt: now,
			}, m.cfg.HistoryCap)
			delete(result, loser)
			delete(touched, loser)
			log.FromCtx(ctx).Debug().Str("canonical", keys[0]).Str("duplicate", loser).Msg("consolidated duplicate fact key")
			changed = true
		}
		result[keys[0]] = canonical
		touched[keys[0]] = true
	}
	return changed
}

// decay weakens facts untouched this turn on a weekly cadence and drops
// the ones that fall below the retention floor.
func (m *Merger) decay(result map[string]core.Fact, touched map[string]bool, now time.Time) bool {
	changed := false
	for k, f := range result {
		if touched[k] {
			continue
		}
		anchor := f.LastUpdatedAt
		if f.LastDecayAt.After(anchor) {
			anchor = f.LastDecayAt
		}
		weeks := int(now.Sub(anchor).Hours() / (24 * 7))
		if weeks <= 0 {
			continue
		}
		f.Confidence *= math.Pow(m.cfg.WeeklyDecay, float64(weeks))
		f.LastDecayAt = now
		if f.Confidence < m.cfg.RetentionFloor {
			delete(result, k)
		} else {
			result[k] = f
		}
		changed = true
	}
	return changed
}

// summarize compresses an oversized fact map back under the ceiling.
// Best effort: any failure leaves the map as it was. Identity-critical
// keys survive verbatim no matter what the model returns.
func (m *Merger) summarize(ctx context.Context, result map[string]core.Fact, now time.Time) bool {
	logger := log.FromCtx(ctx)

	compact := make(map[string]map[string]any, len(result))
	for k, f := range result {
		compact[k] = map[string]any{"value": f.Value, "confidence": f.Confidence}
	}
	blob, err := json.Marshal(compact)
	if err != nil {
		return false
	}

	var preserve []string
	for _, k := range identityCriticalKeys {
		if _, ok := result[k]; ok {
			preserve = append(preserve, k)
		}
	}

	resp, err := m.model.Invoke(ctx, core.RoleMemorySummarization, map[string]string{
		"facts":    string(blob),
		"ceiling":  fmt.Sprintf("%d", m.cfg.FactCeiling),
		"preserve": strings.Join(preserve, ", "),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("memory summarization failed, keeping full fact map")
		return false
	}

	parsed, err := parseExtractionResponse(resp)
	if err != nil || len(parsed) == 0 || len(parsed) > m.cfg.FactCeiling {
		logger.Warn().Err(err).Int("returned", len(parsed)).Msg("unusable summarization response, keeping full fact map")
		return false
	}

	summarized := make(map[string]core.Fact, len(parsed))
	for key, c := range parsed {
		key = normalizeKey(key)
		if key == "" || c.Value == nil || c.Confidence == nil || *c.Confidence < 0 || *c.Confidence > 1 {
			continue
		}
		if old, ok := result[key]; ok {
			old.Value = c.Value
			old.Confidence = *c.Confidence
			old.LastUpdatedAt = now
			summarized[key] = old
		} else {
			summarized[key] = core.Fact{
				Key:           key,
				Value:         c.Value,
				Confidence:    *c.Confidence,
				Source:        core.SourceInference,
				CreatedAt:     now,
				LastUpdatedAt: now,
			}
		}
	}
	for _, k := range preserve {
		summarized[k] = result[k]
	}

	for k := range result {
		delete(result, k)
	}
	for k, f := range summarized {
		result[k] = f
	}
	logger.Info().Int("facts", len(result)).Msg("memory summarized")
	return true
}

// DecayPass runs only the decay stage, for background maintenance over
// users with no active turn.
func (m *Merger) DecayPass(mem *core.UserMemory, now time.Time) bool {
	return m.decay(mem.Facts, map[string]bool{}, now)
}

func appendRevision(history []core.FactRevision, rev core.FactRevision, limit int) []core.FactRevision {
	history = append(history, rev)
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// materiallyDifferent reports whether two values disagree after case
// folding and trimming their scalar rendering.
func materiallyDifferent(a, b any) bool {
	na := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", a)))
	nb := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", b)))
	return na != nb
}

func wordSet(key string) string {
	words := strings.Split(key, "_")
	sort.Strings(words)
	return strings.Join(words, " ")
}

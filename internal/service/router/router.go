// Package router classifies incoming turns: command detection, question
// complexity, and the decision whether a turn is worth extracting facts
// from. Cheap pattern checks run first; the language model is consulted
// only when patterns are inconclusive.
package router

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/pkg/log"
)

var (
	memoryCommandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^!memory\s*$`),
		regexp.MustCompile(`^!forget\s+.+`),
		regexp.MustCompile(`^!update\s+.+`),
		regexp.MustCompile(`^!help\s*$`),
		regexp.MustCompile(`^!export\s*$`),
		regexp.MustCompile(`^!search\s+.+`),
	}

	systemCommandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^!status\s*$`),
		regexp.MustCompile(`^!debug\s*$`),
	}

	greetingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(hi|hello|hey|good morning|good afternoon|good evening)\s*[!.]*$`),
		regexp.MustCompile(`^(thanks|thank you|thx)\s*[!.]*$`),
		regexp.MustCompile(`^(bye|goodbye|see you|farewell)\s*[!.]*$`),
		regexp.MustCompile(`^(how are you|what's up|how's it going)\s*[?!.]*$`),
	}

	simplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^what is .{1,20}\?*$`),
		regexp.MustCompile(`^who is .{1,20}\?*$`),
		regexp.MustCompile(`^when .{1,20}\?*$`),
		regexp.MustCompile(`^where .{1,20}\?*$`),
		regexp.MustCompile(`^how .{1,20}\?*$`),
	}

	// Statements about who the user is must take the full path so the
	// stated facts reach the extractor.
	profilePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bmy name is\s+\S`),
		regexp.MustCompile(`\bcall me\s+\S`),
		regexp.MustCompile(`\bi am\s+\S`),
		regexp.MustCompile(`\bi'm\s+\S`),
		regexp.MustCompile(`\bwe are\s+\S`),
	}

	factualIndicators = []*regexp.Regexp{
		regexp.MustCompile(`\b(llc|corporation|partnership|sole proprietorship)\b`),
		regexp.MustCompile(`\b(my business|my company|my name|we are|i am|i'm|i work|i live)\b`),
		regexp.MustCompile(`\b(planning to|want to|need to|looking to)\b`),
		regexp.MustCompile(`\b(revenue|employees|customers|clients)\b`),
		regexp.MustCompile(`\$\d+`),
		regexp.MustCompile(`\b\d+\s+(employees|years|months)\b`),
		regexp.MustCompile(`\b(founded|established|started)\b`),
	}

	socialKeywords = []string{
		"hello", "hi", "hey", "thanks", "thank you", "goodbye", "bye",
		"how are you", "nice to meet", "pleasure", "welcome",
	}
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func countTokens(text string) int {
	tkOnce.Do(func() {
		var err error
		tk, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic("failed to load tiktoken: " + err.Error())
		}
	})
	if text == "" {
		return 0
	}
	return len(tk.Encode(text, nil, nil))
}

type Router struct {
	model   core.LanguageModel
	cfg     *config.MemoryConfig
	metrics *Metrics
}

func New(model core.LanguageModel, cfg *config.MemoryConfig) *Router {
	return &Router{
		model:   model,
		cfg:     cfg,
		metrics: &Metrics{},
	}
}

func (r *Router) Metrics() *Metrics {
	return r.metrics
}

// ClassifyCommand detects ! commands. Anything that is not a recognized
// command is a question, including unknown ! prefixes.
func (r *Router) ClassifyCommand(input string) core.CommandType {
	r.metrics.Total.Add(1)
	normalized := strings.ToLower(strings.TrimSpace(input))

	for _, p := range memoryCommandPatterns {
		if p.MatchString(normalized) {
			r.metrics.Commands.Add(1)
			return core.CommandMemory
		}
	}
	for _, p := range systemCommandPatterns {
		if p.MatchString(normalized) {
			return core.CommandSystem
		}
	}
	return core.CommandQuestion
}

// ClassifyQuestion determines complexity. Obvious cases are settled by
// patterns; the model decides the rest. Unclear or failed model calls
// default to complex so no question loses context it might need.
// The turn was already counted by ClassifyCommand, which sees every
// input first.
func (r *Router) ClassifyQuestion(ctx context.Context, question string, facts map[string]core.Fact) core.QuestionType {
	if qt := quickClassify(question); qt != core.QuestionUnclassified {
		r.count(qt)
		return qt
	}

	out, err := r.model.Invoke(ctx, core.RoleComplexityClassification, map[string]string{
		"input": question,
	})
	if err != nil {
		r.metrics.Errors.Add(1)
		log.FromCtx(ctx).Warn().Err(err).Msg("complexity classification failed, defaulting to complex")
		r.count(core.QuestionComplex)
		return core.QuestionComplex
	}

	classification := strings.ToLower(strings.TrimSpace(out))
	var qt core.QuestionType
	switch {
	case strings.Contains(classification, "greeting"):
		qt = core.QuestionGreeting
	case strings.Contains(classification, "simple"):
		qt = core.QuestionSimple
	case strings.Contains(classification, "complex"):
		qt = core.QuestionComplex
	default:
		log.FromCtx(ctx).Warn().Str("classification", classification).Msg("unclear classification, defaulting to complex")
		qt = core.QuestionComplex
	}
	r.count(qt)
	return qt
}

func (r *Router) count(qt core.QuestionType) {
	switch qt {
	case core.QuestionGreeting:
		r.metrics.Greetings.Add(1)
	case core.QuestionSimple:
		r.metrics.SimpleQuestions.Add(1)
	case core.QuestionComplex:
		r.metrics.ComplexQuestions.Add(1)
	}
}

func quickClassify(question string) core.QuestionType {
	normalized := strings.ToLower(strings.TrimSpace(question))

	for _, p := range profilePatterns {
		if p.MatchString(normalized) {
			return core.QuestionComplex
		}
	}
	for _, p := range greetingPatterns {
		if p.MatchString(normalized) {
			return core.QuestionGreeting
		}
	}
	if len(normalized) < 20 {
		for _, p := range simplePatterns {
			if p.MatchString(normalized) {
				return core.QuestionSimple
			}
		}
	}
	return core.QuestionUnclassified
}

// ShouldExtractFacts decides whether the extraction pass is worth running
// for this turn. Conversation is the user input plus the generated answer.
func (r *Router) ShouldExtractFacts(ctx context.Context, conversation string, facts map[string]core.Fact) bool {
	if countTokens(strings.TrimSpace(conversation)) < r.cfg.MinExtractTokens {
		r.metrics.ExtractionSkips.Add(1)
		log.FromCtx(ctx).Debug().Msg("skipping fact extraction: conversation too short")
		return false
	}

	if isPurelySocial(conversation) {
		r.metrics.ExtractionSkips.Add(1)
		log.FromCtx(ctx).Debug().Msg("skipping fact extraction: purely social conversation")
		return false
	}

	if len(facts) == 0 {
		return true
	}

	if containsFactualInformation(conversation) {
		if coveredByExistingFacts(conversation, facts) {
			r.metrics.ExtractionSkips.Add(1)
			log.FromCtx(ctx).Debug().Msg("skipping fact extraction: content covered by existing facts")
			return false
		}
		return true
	}

	r.metrics.ExtractionSkips.Add(1)
	log.FromCtx(ctx).Debug().Msg("skipping fact extraction: no factual information detected")
	return false
}

// coveredByExistingFacts strips known high-confidence fact values out of
// the conversation and re-checks for factual content. When nothing factual
// remains, the turn restates what memory already holds. The check is
// deliberately cheap; on ambiguity it answers false so extraction runs.
func coveredByExistingFacts(conversation string, facts map[string]core.Fact) bool {
	stripped := strings.ToLower(conversation)
	matched := false
	for _, f := range facts {
		if f.Confidence < 0.8 {
			continue
		}
		v, ok := f.Value.(string)
		if !ok || len(v) < 3 {
			continue
		}
		lv := strings.ToLower(v)
		if strings.Contains(stripped, lv) {
			stripped = strings.ReplaceAll(stripped, lv, "")
			matched = true
		}
	}
	return matched && !containsFactualInformation(stripped)
}

func isPurelySocial(conversation string) bool {
	lower := strings.ToLower(conversation)

	social := 0
	for _, kw := range socialKeywords {
		if strings.Contains(lower, kw) {
			social++
		}
	}
	if social == 0 || len(conversation) >= 200 {
		return false
	}
	return !containsFactualInformation(conversation)
}

func containsFactualInformation(conversation string) bool {
	lower := strings.ToLower(conversation)
	for _, p := range factualIndicators {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/memora/internal/config"
	"github.com/sandevgo/memora/internal/core"
	"github.com/sandevgo/memora/internal/service/answer"
	"github.com/sandevgo/memora/internal/service/facts"
	"github.com/sandevgo/memora/internal/service/retriever"
	"github.com/sandevgo/memora/internal/service/router"
	"github.com/sandevgo/memora/pkg/log"
)

// Engine runs one turn at a time through the state machine. It holds no
// goroutines of its own; concurrency comes from callers running turns
// for different users in parallel. All collaborators are injected so
// tests can substitute deterministic fakes.
type Engine struct {
	store     core.MemoryStore
	router    *router.Router
	retriever *retriever.Retriever
	generator *answer.Generator
	extractor *facts.Extractor
	merger    *facts.Merger
	cfg       *config.AppConfig
	memCfg    *config.MemoryConfig

	clock func() time.Time
}

func NewEngine(
	store core.MemoryStore,
	rt *router.Router,
	ret *retriever.Retriever,
	gen *answer.Generator,
	ext *facts.Extractor,
	mrg *facts.Merger,
	cfg *config.AppConfig,
	memCfg *config.MemoryConfig,
) *Engine {
	return &Engine{
		store:     store,
		router:    rt,
		retriever: ret,
		generator: gen,
		extractor: ext,
		merger:    mrg,
		cfg:       cfg,
		memCfg:    memCfg,
		clock:     time.Now,
	}
}

// SetClock overrides the engine's time source. Tests only.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// Run executes one turn. The returned error is non-nil only when ctx is
// cancelled; every in-pipeline failure is recovered with a fallback and
// reported through TurnResult.NodeErrors. A cancelled turn never writes
// memory, no matter how far the pipeline got.
func (e *Engine) Run(ctx context.Context, userID, input string) (*TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.clock()
	st := newTurnState(userID, input, now)
	logger := log.FromCtx(ctx).With().Str("turn_id", st.TurnID).Str("user_id", userID).Logger()
	ctx = logger.WithContext(ctx)

	// Classify always runs first. It needs the user's facts, so the
	// memory read happens inside its boundary; an unreachable store
	// fails soft to an empty memory.
	st.visit(NodeClassify)
	started := e.clock()
	mem, err := e.loadMemory(ctx, userID, now)
	if err != nil {
		st.fail(NodeClassify, core.ErrRetrieval, err)
		mem = core.NewUserMemory(userID, now)
	}
	st.Memory = mem
	st.CommandType = e.router.ClassifyCommand(input)
	st.Durations[NodeClassify] = e.clock().Sub(started)

	if st.CommandType != core.CommandQuestion {
		return e.runCommand(ctx, st)
	}

	cctx, cancel := e.callCtx(ctx)
	st.QuestionType = e.router.ClassifyQuestion(cctx, input, mem.Facts)
	cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch st.QuestionType {
	case core.QuestionGreeting, core.QuestionSimple:
		return e.runLightweight(ctx, st)
	default:
		return e.runFull(ctx, st)
	}
}

// runCommand executes the terminal command path: the handler operates
// directly against the store and its confirmation string is the answer.
func (e *Engine) runCommand(ctx context.Context, st *TurnState) (*TurnResult, error) {
	st.visit(NodeHandleCommand)
	started := e.clock()

	cctx, cancel := e.callCtx(ctx)
	reply, updated, err := e.handleCommand(cctx, st)
	cancel()
	st.Durations[NodeHandleCommand] = e.clock().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st.fail(NodeHandleCommand, core.ErrPersist, err)
		reply = "Sorry, that command failed. Your memory was not changed."
		updated = false
	}
	st.Answer = reply
	return st.result(updated), nil
}

// runLightweight answers greetings and trivially simple questions from
// user facts alone: no document retrieval, no fact extraction.
func (e *Engine) runLightweight(ctx context.Context, st *TurnState) (*TurnResult, error) {
	st.visit(NodeLightweightRespond)
	started := e.clock()

	if st.QuestionType == core.QuestionGreeting {
		st.Answer = greetingReply(st.Memory.Facts)
	} else {
		cctx, cancel := e.callCtx(ctx)
		out, err := e.generator.Generate(cctx, st.RawInput, st.Memory.Facts, nil)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			st.fail(NodeLightweightRespond, core.ErrGeneration, err)
			out = answer.FallbackAnswer
		}
		st.Answer = out
	}
	st.Durations[NodeLightweightRespond] = e.clock().Sub(started)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.skipPersist(ctx, st)
}

// runFull is the default path for substantive questions.
func (e *Engine) runFull(ctx context.Context, st *TurnState) (*TurnResult, error) {
	st.visit(NodeRetrieveContext)
	started := e.clock()
	cctx, cancel := e.callCtx(ctx)
	docs, err := e.retriever.Retrieve(cctx, st.RawInput, st.Memory.Facts)
	cancel()
	st.Durations[NodeRetrieveContext] = e.clock().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st.fail(NodeRetrieveContext, core.ErrRetrieval, err)
		docs = nil
	}
	st.RetrievedDocs = docs

	st.visit(NodeGenerateAnswer)
	started = e.clock()
	cctx, cancel = e.callCtx(ctx)
	out, err := e.generator.Generate(cctx, st.RawInput, st.Memory.Facts, st.RetrievedDocs)
	cancel()
	st.Durations[NodeGenerateAnswer] = e.clock().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st.fail(NodeGenerateAnswer, core.ErrGeneration, err)
		out = answer.FallbackAnswer
	}
	st.Answer = out

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st.visit(NodeDecideExtraction)
	conversation := st.RawInput + "\n" + st.Answer
	if !e.router.ShouldExtractFacts(ctx, conversation, st.Memory.Facts) {
		return e.skipPersist(ctx, st)
	}

	st.visit(NodeExtractFacts)
	started = e.clock()
	cctx, cancel = e.callCtx(ctx)
	proposed, err := e.extractor.Extract(cctx, st.RawInput, st.Answer, core.SortedFactKeys(st.Memory.Facts), e.clock())
	cancel()
	st.Durations[NodeExtractFacts] = e.clock().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st.fail(NodeExtractFacts, core.ErrExtractionParse, err)
		proposed = map[string]core.Fact{}
	}
	st.ProposedFacts = proposed

	st.visit(NodeMergeFacts)
	started = e.clock()
	cctx, cancel = e.callCtx(ctx)
	merged, err := e.merger.Merge(cctx, st.Memory.Facts, proposed, e.clock())
	cancel()
	st.Durations[NodeMergeFacts] = e.clock().Sub(started)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st.fail(NodeMergeFacts, core.ErrConflictResolution, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st.visit(NodePersist)
	started = e.clock()
	cctx, cancel = e.callCtx(ctx)
	persistErr := e.persist(cctx, st, merged)
	cancel()
	st.Durations[NodePersist] = e.clock().Sub(started)
	if persistErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The sole non-recovered failure: answer is delivered but the
		// caller learns the memory was not updated.
		st.fail(NodePersist, core.ErrPersist, persistErr)
		return st.result(false), nil
	}

	return st.result(merged.Changed), nil
}

// skipPersist ends a turn whose facts were not analyzed. The exchange is
// still appended to the conversation log on a best-effort basis; a
// failed write here only logs, since no fact changed.
func (e *Engine) skipPersist(ctx context.Context, st *TurnState) (*TurnResult, error) {
	st.visit(NodeSkipPersist)

	now := e.clock()
	e.appendLog(st, nil, now)
	st.Memory.LastUpdatedAt = now
	cctx, cancel := e.callCtx(ctx)
	err := e.store.Put(cctx, st.UserID, st.Memory)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.FromCtx(ctx).Warn().Err(err).Msg("conversation log write failed")
	}
	return st.result(false), nil
}

// persist applies the merged facts and the turn's log entries, then
// writes the whole document back in one replace.
func (e *Engine) persist(ctx context.Context, st *TurnState, merged facts.Result) error {
	now := e.clock()
	st.Memory.Facts = merged.Facts
	e.appendLog(st, extractedKeys(st.ProposedFacts), now)
	st.Memory.LastUpdatedAt = now

	if err := e.store.Put(ctx, st.UserID, st.Memory); err != nil {
		return fmt.Errorf("memory write: %w", err)
	}
	return nil
}

func (e *Engine) appendLog(st *TurnState, factKeys []string, now time.Time) {
	st.Memory.Log = append(st.Memory.Log,
		core.ConversationTurn{
			Role:           core.RoleUser,
			Content:        st.RawInput,
			Timestamp:      now,
			FactsExtracted: factKeys,
		},
		core.ConversationTurn{
			Role:      core.RoleAssistant,
			Content:   st.Answer,
			Timestamp: now,
		},
	)
	if limit := e.memCfg.LogCap; limit > 0 && len(st.Memory.Log) > limit {
		st.Memory.Log = st.Memory.Log[len(st.Memory.Log)-limit:]
	}
}

func (e *Engine) loadMemory(ctx context.Context, userID string, now time.Time) (*core.UserMemory, error) {
	cctx, cancel := e.callCtx(ctx)
	mem, err := e.store.Get(cctx, userID)
	cancel()
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = core.NewUserMemory(userID, now)
	}
	if mem.Facts == nil {
		mem.Facts = make(map[string]core.Fact)
	}
	return mem, nil
}

// callCtx bounds one external call. A timed-out call fails exactly like
// a hard failure of its node.
func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.CallTimeout)
}

func extractedKeys(proposed map[string]core.Fact) []string {
	if len(proposed) == 0 {
		return nil
	}
	return core.SortedFactKeys(proposed)
}

func greetingReply(userFacts map[string]core.Fact) string {
	if f, ok := userFacts["name"]; ok {
		return fmt.Sprintf("Hello %v! How can I help you today?", f.Value)
	}
	return "Hello! How can I help you today?"
}

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/guardrail"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/memory"
	"github.com/hupe1980/shopmesh/model"
	"github.com/hupe1980/shopmesh/search"
	"github.com/hupe1980/shopmesh/tool"
)

// MaxIterations bounds the reason/act loop per message. A model that keeps
// requesting tools past this limit gets cut off with whatever text exists.
const MaxIterations = 5

// fallbackReply is sent when the model transport fails. A keyword search
// still runs so the shopper gets something useful alongside the apology.
const fallbackReply = "I'm having trouble generating a full answer right now. " +
	"Here are some products that match what you asked about."

// exhaustedReply is sent when the loop hits MaxIterations without final text.
const exhaustedReply = "I couldn't finish working through that request. Could you rephrase it?"

// Options configure an Engine.
type Options struct {
	MaxIterations int
	Logger        logging.Logger
}

// Engine wires the model, tools, guardrails, memory and search into the
// message processing loop. Safe for concurrent use across sessions.
type Engine struct {
	model         model.Model
	registry      *tool.Registry
	executor      *tool.Executor
	guardrails    *guardrail.Engine
	memory        *memory.Manager
	search        *search.Service
	ledger        *cart.Ledger
	logger        logging.Logger
	maxIterations int

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// New constructs an Engine. All collaborators are required except the options.
func New(
	m model.Model,
	registry *tool.Registry,
	executor *tool.Executor,
	guardrails *guardrail.Engine,
	mem *memory.Manager,
	searchSvc *search.Service,
	ledger *cart.Ledger,
	optFns ...func(o *Options),
) *Engine {
	opts := Options{MaxIterations: MaxIterations, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = MaxIterations
	}
	return &Engine{
		model:         m,
		registry:      registry,
		executor:      executor,
		guardrails:    guardrails,
		memory:        mem,
		search:        searchSvc,
		ledger:        ledger,
		logger:        opts.Logger,
		maxIterations: opts.MaxIterations,
		sessions:      make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing one (user, session) pair.
func (e *Engine) sessionLock(userID, sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := userID + ":" + sessionID
	lock, ok := e.sessions[key]
	if !ok {
		lock = &sync.Mutex{}
		e.sessions[key] = lock
	}
	return lock
}

// ProcessMessage runs one shopper message through guardrails, the reason/act
// loop and output scrubbing. Frames arrive on the returned channel and it is
// always terminated by a done frame, whatever went wrong in between.
func (e *Engine) ProcessMessage(ctx context.Context, userID, sessionID, message string) <-chan Frame {
	frames := make(chan Frame, 8)

	go func() {
		defer close(frames)

		lock := e.sessionLock(userID, sessionID)
		lock.Lock()
		defer lock.Unlock()

		start := time.Now()
		e.process(ctx, userID, sessionID, message, frames)
		e.logger.Info(
			"engine.message.processed",
			"user_id", userID,
			"session_id", sessionID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	return frames
}

func (e *Engine) process(ctx context.Context, userID, sessionID, message string, frames chan<- Frame) {
	defer func() { frames <- DoneFrame() }()

	verdict := e.guardrails.CheckInput(message)
	if !verdict.Allowed {
		e.logger.Info(
			"engine.input.blocked",
			"user_id", userID,
			"session_id", sessionID,
			"reason", string(verdict.Reason),
		)
		conv := e.memory.Conversation(ctx, userID, sessionID)
		e.memory.AddTurn(ctx, &conv, memory.RoleUser, verdict.Sanitized)
		e.memory.AddTurn(ctx, &conv, memory.RoleAssistant, verdict.Refusal)
		frames <- TextFrame(verdict.Refusal)
		return
	}

	// From here on only the PII-scrubbed form of the message exists: it is
	// what the model sees, what fallback search runs on and what memory keeps.
	message = verdict.Sanitized

	conv := e.memory.Conversation(ctx, userID, sessionID)
	instructions := buildInstructions(conv, e.ledger.Summary(ctx, userID))
	contents := e.buildContents(conv, message)

	var (
		finalText  string
		draft      string
		products   []catalog.Product
		toolCalled bool
	)

	for iteration := 0; iteration < e.maxIterations; iteration++ {
		resp, err := e.callModel(ctx, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        e.registry.Definitions(),
		})
		if err != nil {
			e.logger.Error("engine.model.failed", "iteration", iteration, "error", err.Error())
			finalText = fallbackReply
			products = e.fallbackSearch(ctx, message)
			break
		}

		fnCalls := resp.Content.FunctionCalls()
		if len(fnCalls) == 0 {
			finalText = resp.Content.Text()
			break
		}

		// Text emitted alongside tool calls is the best draft so far.
		if text := resp.Content.Text(); text != "" {
			draft = text
		}

		toolCalled = true
		contents = append(contents, resp.Content)

		results := e.executor.Execute(ctx, userID, sessionID, fnCalls)
		for _, res := range results {
			products = mergeProducts(products, res.Products)
			contents = append(contents, core.NewToolResponse(core.FunctionResponse{
				ID:       res.CallID,
				Name:     res.Name,
				Response: res.Response,
				Error:    res.Error,
			}))
		}
	}

	if finalText == "" {
		e.logger.Warn("engine.iterations.exhausted", "user_id", userID, "session_id", sessionID)
		finalText = draft
		if finalText == "" {
			finalText = exhaustedReply
		}
	}

	// A reply with no tool grounding still deserves product suggestions when
	// the message reads like a product request.
	if !toolCalled && len(products) == 0 {
		products = e.fallbackSearch(ctx, message)
	}

	finalText = e.guardrails.CheckOutput(finalText, guardrail.OutputContext{Products: products})

	e.memory.AddTurn(ctx, &conv, memory.RoleUser, message)
	e.memory.AddTurn(ctx, &conv, memory.RoleAssistant, finalText)

	frames <- TextFrame(finalText)
	if len(products) > 0 {
		frames <- ProductsFrame(products)
	}
}

// buildContents converts the remembered turn window plus the new message into
// model contents.
func (e *Engine) buildContents(conv memory.Conversation, message string) []core.Content {
	turns := e.memory.ContextTurns(conv)
	contents := make([]core.Content, 0, len(turns)+1)
	for _, t := range turns {
		switch t.Role {
		case memory.RoleAssistant:
			contents = append(contents, core.NewAssistantText(t.Content))
		default:
			contents = append(contents, core.NewUserText(t.Content))
		}
	}
	return append(contents, core.NewUserText(message))
}

// callModel drains a Generate call down to its final response.
func (e *Engine) callModel(ctx context.Context, req model.Request) (model.Response, error) {
	respCh, errCh := e.model.Generate(ctx, req)

	var final model.Response
	for resp := range respCh {
		if !resp.Partial {
			final = resp
		}
	}
	if err := <-errCh; err != nil {
		return model.Response{}, err
	}
	if ctx.Err() != nil {
		return model.Response{}, ctx.Err()
	}

	return final, nil
}

// fallbackSearch runs a plain keyword lookup for the raw message. Errors are
// swallowed; this path only ever adds to a response.
func (e *Engine) fallbackSearch(ctx context.Context, message string) []catalog.Product {
	if e.search == nil {
		return nil
	}
	products, err := e.search.Search(ctx, message, catalog.Filters{})
	if err != nil {
		e.logger.Warn("engine.fallback_search.failed", "error", err.Error())
		return nil
	}
	if len(products) > 5 {
		products = products[:5]
	}
	return products
}

// mergeProducts appends new products, deduplicating by id and preserving
// first-seen order.
func mergeProducts(existing, incoming []catalog.Product) []catalog.Product {
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p.ID] = struct{}{}
	}
	for _, p := range incoming {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		existing = append(existing, p)
	}
	return existing
}

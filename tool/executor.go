package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/logging"
)

// Result statuses reported back to the model.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MaxResultChars caps the serialized size of a single tool result before
// product lists are truncated. Oversized results blow the context budget
// without improving answers.
const MaxResultChars = 6000

// TruncatedProductCount is how many products survive result truncation.
const TruncatedProductCount = 4

// Result is the outcome of one function call in a batch.
type Result struct {
	CallID   string            `json:"call_id"`
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Payload  any               `json:"payload,omitempty"`
	Response string            `json:"response"` // serialized form fed back to the model
	Error    string            `json:"error,omitempty"`
	Products []catalog.Product `json:"products,omitempty"`
}

// ExecutorConfig configures the parallel batch executor.
type ExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len of batch)
	LogStartEvents bool // log a start line per function
}

// Executor runs batches of model-issued function calls against a Registry.
// Results are always returned in the order of the incoming calls, regardless
// of completion order. A panicking or erroring tool never takes down the
// batch; it yields an error Result instead.
type Executor struct {
	registry *Registry
	logger   logging.Logger
	cfg      ExecutorConfig
}

// NewExecutor constructs an executor over the given registry.
func NewExecutor(registry *Registry, logger logging.Logger, optFns ...func(c *ExecutorConfig)) *Executor {
	cfg := ExecutorConfig{}
	for _, fn := range optFns {
		fn(&cfg)
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{registry: registry, logger: logger, cfg: cfg}
}

// Execute runs all function calls, possibly in parallel, and returns one
// Result per call in the original order.
func (e *Executor) Execute(
	ctx context.Context,
	userID, sessionID string,
	fnCalls []core.FunctionCall,
) []Result {
	n := len(fnCalls)
	if n == 0 {
		return nil
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		return []Result{e.executeSingle(ctx, userID, sessionID, fnCalls[0])}
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]Result, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range fnCalls {
		if ctx.Err() != nil { // pre-check cancellation
			results[i] = errorResult(fnCalls[i], ctx.Err().Error())
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = e.executeSingle(ctx, userID, sessionID, fc)
		}(i, fnCalls[i])
	}

	wg.Wait()

	e.logger.Debug(
		"tool.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *Executor) executeSingle(
	ctx context.Context,
	userID, sessionID string,
	fc core.FunctionCall,
) Result {
	toolCtx := core.NewToolContext(ctx, userID, sessionID, fc.ID, e.logger)
	if e.cfg.LogStartEvents {
		e.logger.Info("tool.function.start", "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()
	var (
		payload any
		err     error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
				e.logger.Error("tool.function.panic", "function", fc.Name, "recover", r, "stack", string(debug.Stack()))
			}
		}()
		payload, err = e.callTool(toolCtx, fc.Name, fc.Arguments)
	}()

	e.logger.Info(
		"tool.function.executed",
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		return errorResult(fc, err.Error())
	}

	res := Result{CallID: fc.ID, Name: fc.Name, Status: StatusSuccess, Payload: payload}
	if carrier, ok := payload.(ProductCarrier); ok {
		res.Products = carrier.ToolProducts()
	}
	res.Response = serializeResult(payload)

	return res
}

// callTool centralizes tool lookup, argument decoding and execution.
func (e *Executor) callTool(toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := e.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	var argMap map[string]any
	if args == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return impl.Call(toolCtx, argMap)
}

func errorResult(fc core.FunctionCall, msg string) Result {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return Result{
		CallID:   fc.ID,
		Name:     fc.Name,
		Status:   StatusError,
		Error:    msg,
		Response: string(body),
	}
}

// serializeResult renders a payload for the model. Results whose serialized
// form exceeds MaxResultChars have their "products" array cut down to
// TruncatedProductCount entries with a truncation marker, keeping the context
// window bounded on broad searches.
func serializeResult(payload any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	if len(raw) <= MaxResultChars {
		return string(raw)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return truncateUTF8(raw, MaxResultChars)
	}
	if products, ok := m["products"].([]any); ok && len(products) > TruncatedProductCount {
		m["products"] = products[:TruncatedProductCount]
		m["truncated"] = true
		if cut, err := json.Marshal(m); err == nil {
			return string(cut)
		}
	}

	return truncateUTF8(raw, MaxResultChars)
}

// truncateUTF8 cuts raw at limit without splitting a multi-byte rune.
func truncateUTF8(raw []byte, limit int) string {
	if len(raw) <= limit {
		return string(raw)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return string(raw[:cut])
}

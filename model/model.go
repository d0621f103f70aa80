// Package model defines the provider-agnostic language model interface used
// by the orchestrator: a normalized Request (instructions, contents, tool
// declarations) and a channel of streaming Responses. Vendor adapters live in
// the openai and anthropic subpackages.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/shopmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the orchestrator.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples. It
// maps the last user text of a request to a canned completion.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model; emits optional streaming char chunks then a
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		inputText := req.Contents[len(req.Contents)-1].Text()
		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewAssistantText(string(r))}:
				}
			}
		}

		respCh <- Response{Content: core.NewAssistantText(full), FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// ScriptedModel replays a fixed sequence of final responses, one per Generate
// call, then keeps repeating the last one. It lets tests script multi-step
// tool-calling conversations deterministically. An entry with a nil Responses
// slice simulates a transport failure.
type ScriptedModel struct {
	mu    sync.Mutex
	steps []ScriptedStep
	calls int
}

// ScriptedStep is one scripted Generate outcome.
type ScriptedStep struct {
	Responses []Response
	Err       error
}

// NewScriptedModel constructs a model that plays the given steps in order.
func NewScriptedModel(steps ...ScriptedStep) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Calls reports how many times Generate has been invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, _ Request) (<-chan Response, <-chan error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	step := ScriptedStep{}
	if idx >= 0 {
		step = m.steps[idx]
	}
	m.mu.Unlock()

	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.Err != nil {
			errCh <- step.Err
			return
		}
		for _, resp := range step.Responses {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- resp:
			}
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

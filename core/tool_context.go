package core

import (
	"context"

	"github.com/hupe1980/shopmesh/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked during a turn. It identifies the user and session
// the call belongs to and carries the invocation's cancellation context and
// logger. Tools must not retain it beyond the call.
type ToolContext struct {
	ctx            context.Context
	userID         string
	sessionID      string
	functionCallID string
	logger         logging.Logger
}

// NewToolContext constructs a tool context bound to a user/session pair and a
// unique function call id.
func NewToolContext(ctx context.Context, userID, sessionID, functionCallID string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            ctx,
		userID:         userID,
		sessionID:      sessionID,
		functionCallID: functionCallID,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// UserID returns the user the tool call acts on behalf of.
func (tc *ToolContext) UserID() string { return tc.userID }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

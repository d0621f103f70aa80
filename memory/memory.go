// Package memory manages per-session conversation state: the turn transcript,
// a rolling summary of evicted turns, recently discussed products and sticky
// shopper preferences. The Store interface abstracts persistence so backends
// (in-process map, Redis) can be swapped at wiring time without touching the
// eviction logic in Manager.
package memory

import (
	"context"
	"time"
)

// Roles recorded on conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Conversation is the full persisted state for one (user, session) pair.
type Conversation struct {
	UserID         string            `json:"user_id"`
	SessionID      string            `json:"session_id"`
	Turns          []Turn            `json:"turns"`
	Summary        string            `json:"summary,omitempty"`
	RecentProducts []string          `json:"recent_products,omitempty"`
	Preferences    map[string]string `json:"preferences,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Store persists conversations keyed by (user, session).
type Store interface {
	// Load returns the conversation and whether it existed.
	Load(ctx context.Context, userID, sessionID string) (Conversation, bool, error)

	// Save persists the conversation, replacing any prior state.
	Save(ctx context.Context, conv Conversation) error

	// Delete removes the conversation.
	Delete(ctx context.Context, userID, sessionID string) error
}

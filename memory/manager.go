package memory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/shopmesh/logging"
)

const (
	// TokenBudget caps the estimated token footprint of a conversation before
	// older turns are folded into the summary.
	TokenBudget = 8000

	// CharsPerToken is the crude chars-to-tokens estimate used for budgeting.
	CharsPerToken = 4

	// KeepRecentTurns is how many trailing turns survive compression verbatim.
	KeepRecentTurns = 5

	// ContextTurns is how many trailing turns are handed to the model.
	ContextTurns = 8

	// RecentProductLimit is how many recently discussed product ids are kept.
	RecentProductLimit = 5

	// maxSummaryChars bounds the rolling summary so compression converges.
	maxSummaryChars = 1200
)

var productIDPattern = regexp.MustCompile(`\bprod_[A-Za-z0-9]+\b`)

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	TokenBudget int
	Logger      logging.Logger
}

// Manager layers conversation lifecycle logic over a Store: lazy creation,
// turn appends, product id mining, token budget compression and transparent
// degradation to an in-process store when the backend is unavailable.
type Manager struct {
	store    Store
	fallback *InMemoryStore
	budget   int
	logger   logging.Logger
}

// NewManager constructs a Manager over the given store.
func NewManager(store Store, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{TokenBudget: TokenBudget, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = TokenBudget
	}
	return &Manager{
		store:    store,
		fallback: NewInMemoryStore(),
		budget:   opts.TokenBudget,
		logger:   opts.Logger,
	}
}

// Conversation loads (or lazily creates) the conversation for a session.
// Backend failures degrade to the in-process fallback rather than erroring;
// losing history is preferable to refusing the chat.
func (m *Manager) Conversation(ctx context.Context, userID, sessionID string) Conversation {
	conv, ok, err := m.store.Load(ctx, userID, sessionID)
	if err != nil {
		m.logger.Warn("memory.store.degraded", "op", "load", "error", err.Error())
		conv, ok, _ = m.fallback.Load(ctx, userID, sessionID)
	}
	if !ok {
		conv = Conversation{UserID: userID, SessionID: sessionID}
	}
	return conv
}

// AddTurn appends a turn, mines product ids from assistant text, compresses
// when over budget and persists the result.
func (m *Manager) AddTurn(ctx context.Context, conv *Conversation, role, content string) {
	conv.Turns = append(conv.Turns, Turn{Role: role, Content: content, At: time.Now()})
	if role == RoleAssistant {
		m.trackProducts(conv, content)
	}
	m.compress(conv)
	m.save(ctx, *conv)
}

// SetPreference records a sticky shopper preference (size, budget, style)
// surfaced by the model and persists it.
func (m *Manager) SetPreference(ctx context.Context, conv *Conversation, key, value string) {
	if conv.Preferences == nil {
		conv.Preferences = make(map[string]string)
	}
	conv.Preferences[key] = value
	m.save(ctx, *conv)
}

// ContextTurns returns the trailing turns handed to the model, newest last.
func (m *Manager) ContextTurns(conv Conversation) []Turn {
	if len(conv.Turns) <= ContextTurns {
		return conv.Turns
	}
	return conv.Turns[len(conv.Turns)-ContextTurns:]
}

// Reset drops all state for a session.
func (m *Manager) Reset(ctx context.Context, userID, sessionID string) {
	if err := m.store.Delete(ctx, userID, sessionID); err != nil {
		m.logger.Warn("memory.store.degraded", "op", "delete", "error", err.Error())
	}
	_ = m.fallback.Delete(ctx, userID, sessionID)
}

func (m *Manager) save(ctx context.Context, conv Conversation) {
	conv.UpdatedAt = time.Now()
	if err := m.store.Save(ctx, conv); err != nil {
		m.logger.Warn("memory.store.degraded", "op", "save", "error", err.Error())
		_ = m.fallback.Save(ctx, conv)
	}
}

// trackProducts appends product ids mentioned in assistant text, dedupes and
// keeps only the most recent RecentProductLimit entries.
func (m *Manager) trackProducts(conv *Conversation, text string) {
	ids := productIDPattern.FindAllString(text, -1)
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		conv.RecentProducts = append(removeString(conv.RecentProducts, id), id)
	}
	if n := len(conv.RecentProducts); n > RecentProductLimit {
		conv.RecentProducts = conv.RecentProducts[n-RecentProductLimit:]
	}
}

// EstimateTokens is the budgeting estimate for a conversation: summary plus
// all turn contents at CharsPerToken chars each.
func EstimateTokens(conv Conversation) int {
	chars := len(conv.Summary)
	for _, t := range conv.Turns {
		chars += len(t.Content)
	}
	return chars / CharsPerToken
}

// compress folds turns older than the KeepRecentTurns tail into the rolling
// summary once the conversation exceeds the token budget. Compression is
// lossy on purpose: a one-line digest per evicted turn.
func (m *Manager) compress(conv *Conversation) {
	if EstimateTokens(*conv) <= m.budget || len(conv.Turns) <= KeepRecentTurns {
		return
	}

	cut := len(conv.Turns) - KeepRecentTurns
	evicted := conv.Turns[:cut]

	var b strings.Builder
	b.WriteString(conv.Summary)
	for _, t := range evicted {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(fmt.Sprintf("%s: %s.", t.Role, digest(t.Content)))
	}
	summary := b.String()
	if len(summary) > maxSummaryChars {
		summary = summary[len(summary)-maxSummaryChars:]
	}

	conv.Summary = summary
	conv.Turns = append([]Turn(nil), conv.Turns[cut:]...)

	m.logger.Debug(
		"memory.compressed",
		"user_id", conv.UserID,
		"session_id", conv.SessionID,
		"evicted_turns", cut,
		"summary_chars", len(conv.Summary),
	)
}

// digest shortens a turn to its leading clause for the rolling summary.
func digest(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.IndexAny(content, ".!?\n"); i > 0 && i < 80 {
		return content[:i]
	}
	if len(content) > 80 {
		return content[:80]
	}
	return content
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

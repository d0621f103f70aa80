package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var _ Store = (*InMemoryStore)(nil)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, ok, err := store.Load(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	conv := Conversation{
		UserID:         "u1",
		SessionID:      "s1",
		Turns:          []Turn{{Role: RoleUser, Content: "hi"}},
		RecentProducts: []string{"prod_001"},
		Preferences:    map[string]string{"size": "10"},
	}
	require.NoError(t, store.Save(ctx, conv))

	loaded, ok, err := store.Load(ctx, "u1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, conv.Turns, loaded.Turns)

	// mutation safety (returned conversation is a copy)
	loaded.Turns[0].Content = "changed"
	loaded.Preferences["size"] = "11"
	again, _, _ := store.Load(ctx, "u1", "s1")
	assert.Equal(t, "hi", again.Turns[0].Content)
	assert.Equal(t, "10", again.Preferences["size"])

	require.NoError(t, store.Delete(ctx, "u1", "s1"))
	_, ok, _ = store.Load(ctx, "u1", "s1")
	assert.False(t, ok)
}

func TestManager_AddTurnTracksProducts(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewInMemoryStore())

	conv := m.Conversation(ctx, "u1", "s1")
	m.AddTurn(ctx, &conv, RoleUser, "show me running shoes")
	m.AddTurn(ctx, &conv, RoleAssistant, "I recommend prod_001 and prod_002.")
	// product ids in user turns are ignored
	m.AddTurn(ctx, &conv, RoleUser, "tell me about prod_999")

	assert.Equal(t, []string{"prod_001", "prod_002"}, conv.RecentProducts)

	// re-mentioning moves a product to the back, no duplicates
	m.AddTurn(ctx, &conv, RoleAssistant, "prod_001 is waterproof.")
	assert.Equal(t, []string{"prod_002", "prod_001"}, conv.RecentProducts)

	// only the most recent five are kept
	m.AddTurn(ctx, &conv, RoleAssistant, "also prod_003 prod_004 prod_005 prod_006")
	assert.Len(t, conv.RecentProducts, RecentProductLimit)
	assert.Equal(t, []string{"prod_001", "prod_003", "prod_004", "prod_005", "prod_006"}, conv.RecentProducts)
}

func TestManager_CompressionKeepsRecentTurns(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewInMemoryStore(), func(o *ManagerOptions) {
		o.TokenBudget = 100 // force compression quickly
	})

	conv := m.Conversation(ctx, "u1", "s1")
	for i := 0; i < 12; i++ {
		m.AddTurn(ctx, &conv, RoleUser, fmt.Sprintf("question %d %s", i, strings.Repeat("filler ", 20)))
	}

	assert.Len(t, conv.Turns, KeepRecentTurns)
	assert.NotEmpty(t, conv.Summary)
	// most recent turn survives verbatim
	assert.Contains(t, conv.Turns[len(conv.Turns)-1].Content, "question 11")
	// evicted turns leave a trace in the summary
	assert.Contains(t, conv.Summary, RoleUser+":")
	assert.LessOrEqual(t, len(conv.Summary), maxSummaryChars)
}

func TestManager_ContextTurnsWindow(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewInMemoryStore())

	conv := m.Conversation(ctx, "u1", "s1")
	for i := 0; i < 3; i++ {
		m.AddTurn(ctx, &conv, RoleUser, fmt.Sprintf("short %d", i))
	}
	assert.Len(t, m.ContextTurns(conv), 3)

	for i := 3; i < 20; i++ {
		m.AddTurn(ctx, &conv, RoleUser, fmt.Sprintf("short %d", i))
	}
	window := m.ContextTurns(conv)
	assert.Len(t, window, ContextTurns)
	assert.Equal(t, "short 19", window[len(window)-1].Content)
}

// failingStore errors on every operation so degradation paths can be tested.
type failingStore struct{}

func (failingStore) Load(context.Context, string, string) (Conversation, bool, error) {
	return Conversation{}, false, errors.New("backend down")
}
func (failingStore) Save(context.Context, Conversation) error { return errors.New("backend down") }
func (failingStore) Delete(context.Context, string, string) error {
	return errors.New("backend down")
}

func TestManager_DegradesToFallback(t *testing.T) {
	ctx := context.Background()
	m := NewManager(failingStore{})

	conv := m.Conversation(ctx, "u1", "s1")
	m.AddTurn(ctx, &conv, RoleUser, "hello")

	// state persisted in the fallback, so a reload round-trips
	reloaded := m.Conversation(ctx, "u1", "s1")
	require.Len(t, reloaded.Turns, 1)
	assert.Equal(t, "hello", reloaded.Turns[0].Content)
}

func TestEstimateTokens(t *testing.T) {
	conv := Conversation{
		Summary: strings.Repeat("s", 40),
		Turns:   []Turn{{Content: strings.Repeat("a", 60)}},
	}
	assert.Equal(t, 25, EstimateTokens(conv))
}

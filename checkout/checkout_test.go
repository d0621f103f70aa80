package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/internal/testutil"
)

// fakeProvider records every CreateSession call and plays back scripted events.
type fakeProvider struct {
	calls    int
	lastKey  string
	event    Event
	eventErr error
}

func (f *fakeProvider) CreateSession(_ context.Context, userID string, _ cart.Summary, key string) (Session, error) {
	f.calls++
	f.lastKey = key
	return Session{
		ID:  fmt.Sprintf("cs_%s_%d", userID, f.calls),
		URL: "https://pay.example.com/" + userID,
	}, nil
}

func (f *fakeProvider) ParseEvent([]byte, string) (Event, error) {
	return f.event, f.eventErr
}

func newTestService(t *testing.T) (*Service, *fakeProvider, *cart.Ledger) {
	t.Helper()

	ledger := cart.NewLedger(testutil.Catalog())
	provider := &fakeProvider{}

	return NewService(provider, ledger), provider, ledger
}

func TestService_EmptyCart(t *testing.T) {
	svc, provider, _ := newTestService(t)

	_, err := svc.CreateSession(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, provider.calls)
}

func TestService_IdempotentPerCartContent(t *testing.T) {
	ctx := context.Background()
	svc, provider, ledger := newTestService(t)

	_, err := ledger.Add(ctx, "u1", "prod_001", 1, "10", "black")
	require.NoError(t, err)

	first, err := svc.CreateSession(ctx, "u1")
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, "u1")
	require.NoError(t, err)

	// Same cart, same session, single provider call
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls)

	// Changing the cart produces a fresh session
	_, err = ledger.Add(ctx, "u1", "prod_003", 1, "M", "")
	require.NoError(t, err)
	third, err := svc.CreateSession(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 2, provider.calls)

	// Another user's identical cart never shares a session
	_, err = ledger.Add(ctx, "u2", "prod_001", 1, "10", "black")
	require.NoError(t, err)
	other, err := svc.CreateSession(ctx, "u2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestService_CompletedWebhookClearsCart(t *testing.T) {
	ctx := context.Background()
	svc, provider, ledger := newTestService(t)

	_, err := ledger.Add(ctx, "u1", "prod_001", 2, "10", "black")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "u1")
	require.NoError(t, err)

	provider.event = Event{Type: EventCompleted, UserID: "u1"}
	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

	assert.Zero(t, ledger.Summary(ctx, "u1").ItemCount)

	// A new checkout after payment creates a fresh session even if the
	// shopper rebuilds the exact same cart.
	_, err = ledger.Add(ctx, "u1", "prod_001", 2, "10", "black")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestService_WebhookRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	svc, provider, _ := newTestService(t)

	provider.eventErr = errors.New("signature mismatch")
	err := svc.HandleWebhook(ctx, []byte(`{}`), "bad")
	assert.Error(t, err)
}

func TestService_WebhookIgnoresOtherEvents(t *testing.T) {
	ctx := context.Background()
	svc, provider, ledger := newTestService(t)

	_, err := ledger.Add(ctx, "u1", "prod_001", 1, "", "")
	require.NoError(t, err)

	provider.event = Event{Type: "payment_intent.created"}
	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))
	assert.Equal(t, 1, ledger.Summary(ctx, "u1").ItemCount)
}

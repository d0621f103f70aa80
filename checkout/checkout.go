// Package checkout turns a cart into a hosted payment session and reacts to
// payment webhooks. Session creation is idempotent per cart content: asking
// twice for the same cart returns the same session instead of double-charging
// an impatient shopper.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/logging"
)

// ErrEmptyCart is returned when checkout is requested for an empty cart.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// EventCompleted is the normalized event type for a finished payment.
const EventCompleted = "checkout.completed"

// Session is a created payment session the shopper is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is a normalized payment webhook event.
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// Provider abstracts the payment backend.
type Provider interface {
	// CreateSession creates a hosted payment session for the cart. The
	// idempotency key is derived from the cart contents; providers should pass
	// it through so retries do not create duplicate sessions upstream either.
	CreateSession(ctx context.Context, userID string, summary cart.Summary, idempotencyKey string) (Session, error)

	// ParseEvent verifies a webhook payload signature and normalizes it.
	ParseEvent(payload []byte, sigHeader string) (Event, error)
}

// Options configure a Service.
type Options struct {
	Logger logging.Logger
}

// Service coordinates checkout: content-addressed session reuse, delegation
// to the Provider and cart clearing on completed payments.
type Service struct {
	provider Provider
	ledger   *cart.Ledger
	logger   logging.Logger

	mu       sync.Mutex
	sessions map[string]Session // userID + cart hash -> session
}

// NewService constructs a checkout Service.
func NewService(provider Provider, ledger *cart.Ledger, optFns ...func(o *Options)) *Service {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{
		provider: provider,
		ledger:   ledger,
		logger:   opts.Logger,
		sessions: make(map[string]Session),
	}
}

// CreateSession creates (or returns the already created) payment session for
// the user's current cart.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	summary := s.ledger.Summary(ctx, userID)
	if summary.ItemCount == 0 {
		return Session{}, ErrEmptyCart
	}

	key := cartHash(userID, summary)

	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		s.logger.Debug("checkout.session.reused", "user_id", userID, "session_id", sess.ID)
		return sess, nil
	}
	s.mu.Unlock()

	sess, err := s.provider.CreateSession(ctx, userID, summary, key)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}

	s.mu.Lock()
	s.sessions[key] = sess
	s.mu.Unlock()

	s.logger.Info(
		"checkout.session.created",
		"user_id", userID,
		"session_id", sess.ID,
		"total", summary.Total,
	)

	return sess, nil
}

// HandleWebhook verifies and applies one webhook delivery. A completed
// payment clears the user's cart and forgets cached sessions for them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.provider.ParseEvent(payload, sigHeader)
	if err != nil {
		return fmt.Errorf("verify webhook: %w", err)
	}

	if event.Type != EventCompleted {
		s.logger.Debug("checkout.webhook.ignored", "type", event.Type)
		return nil
	}
	if event.UserID == "" {
		return fmt.Errorf("completed event missing user id")
	}

	if err := s.ledger.Clear(ctx, event.UserID); err != nil {
		return fmt.Errorf("clear cart after payment: %w", err)
	}
	s.forgetUser(event.UserID)

	s.logger.Info("checkout.completed", "user_id", event.UserID)

	return nil
}

func (s *Service) forgetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := userID + ":"
	for key := range s.sessions {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.sessions, key)
		}
	}
}

// cartHash addresses a cart by its observable content. Item order is already
// deterministic (insertion order within the ledger), so hashing the rendered
// lines is stable.
func cartHash(userID string, summary cart.Summary) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", userID)
	for _, item := range summary.Items {
		fmt.Fprintf(h, "%s|%d|%s|%s|%.2f\n",
			item.ProductID, item.Quantity, item.SelectedSize, item.SelectedColor, item.UnitPrice)
	}
	fmt.Fprintf(h, "%.2f", summary.Total)
	return userID + ":" + hex.EncodeToString(h.Sum(nil))
}

package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/hupe1980/shopmesh/cart"
)

// StripeOptions configure the Stripe provider.
type StripeOptions struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// StripeProvider implements Provider on top of Stripe Checkout.
type StripeProvider struct {
	webhookSecret string
	opts          StripeOptions
}

// NewStripeProvider configures the global Stripe client and returns a
// provider. The webhook secret is used to verify event signatures.
func NewStripeProvider(apiKey, webhookSecret string, optFns ...func(o *StripeOptions)) *StripeProvider {
	opts := StripeOptions{
		SuccessURL: "https://example.com/checkout/success",
		CancelURL:  "https://example.com/checkout/cancel",
		Currency:   "usd",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	stripe.Key = apiKey

	return &StripeProvider{webhookSecret: webhookSecret, opts: opts}
}

// CreateSession implements Provider. Cart lines become Stripe line items in
// cents, with the derived sales tax added as its own line.
func (p *StripeProvider) CreateSession(
	ctx context.Context,
	userID string,
	summary cart.Summary,
	idempotencyKey string,
) (Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(summary.Items)+1)
	for _, item := range summary.Items {
		name := item.Name
		if item.SelectedSize != "" || item.SelectedColor != "" {
			name = fmt.Sprintf("%s (%s %s)", item.Name, item.SelectedSize, item.SelectedColor)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.opts.Currency),
				UnitAmount: stripe.Int64(toCents(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	if summary.Tax > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.opts.Currency),
				UnitAmount: stripe.Int64(toCents(summary.Tax)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Sales Tax"),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(p.opts.SuccessURL),
		CancelURL:         stripe.String(p.opts.CancelURL),
		ClientReferenceID: stripe.String(userID),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	params.AddMetadata("user_id", userID)

	sess, err := session.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe session: %w", err)
	}

	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// ParseEvent implements Provider using Stripe signature verification.
func (p *StripeProvider) ParseEvent(payload []byte, sigHeader string) (Event, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return Event{}, err
	}

	if ev.Type != "checkout.session.completed" {
		return Event{Type: string(ev.Type)}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return Event{}, fmt.Errorf("decode session payload: %w", err)
	}

	userID := sess.Metadata["user_id"]
	if userID == "" {
		userID = sess.ClientReferenceID
	}

	return Event{Type: EventCompleted, UserID: userID}, nil
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

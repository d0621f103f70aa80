// Package cart implements the authoritative per-user shopping cart. Line
// items are owned exclusively by the Ledger and mutated only through its
// operations; the summary (subtotal, tax, total, merchant grouping) is
// re-derived from current line items on every call so it can never drift.
package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/logging"
)

var (
	// ErrNotFound indicates an unknown product id.
	ErrNotFound = errors.New("product not found")
	// ErrOutOfStock indicates the requested quantity exceeds available stock.
	ErrOutOfStock = errors.New("out of stock")
)

// DefaultTaxRate matches the production configuration.
const DefaultTaxRate = 0.08

// line is the stored representation of a cart entry. Identity for upserts is
// (product id, size, color).
type line struct {
	ProductID     string
	Quantity      int
	SelectedSize  string
	SelectedColor string
}

// Item is a cart line enriched with product details for display.
type Item struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	UnitPrice     float64 `json:"price"`
	Quantity      int     `json:"quantity"`
	ImageURL      string  `json:"image_url,omitempty"`
	MerchantID    string  `json:"merchant_id"`
	MerchantName  string  `json:"merchant_name"`
	SelectedSize  string  `json:"selected_size,omitempty"`
	SelectedColor string  `json:"selected_color,omitempty"`
	LineTotal     float64 `json:"line_total"`
}

// Summary is the derived view of a cart. It is never persisted independently
// of the underlying items.
type Summary struct {
	Items     []Item   `json:"items"`
	Subtotal  float64  `json:"subtotal"`
	Tax       float64  `json:"tax"`
	Total     float64  `json:"total"`
	ItemCount int      `json:"item_count"`
	Merchants []string `json:"merchants"`
}

// Options configures a Ledger.
type Options struct {
	TaxRate float64
	Logger  logging.Logger
}

// Ledger holds all user carts keyed by user id. Mutations for a single user
// are serialized through a per-user mutex (single-writer-per-user) so
// concurrent tool calls cannot lose updates.
type Ledger struct {
	catalog catalog.Store
	taxRate float64
	logger  logging.Logger

	mu    sync.Mutex
	carts map[string]*userCart
}

type userCart struct {
	mu    sync.Mutex
	lines []line
}

// NewLedger constructs a Ledger over the given catalog.
func NewLedger(store catalog.Store, optFns ...func(o *Options)) *Ledger {
	opts := Options{TaxRate: DefaultTaxRate, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Ledger{
		catalog: store,
		taxRate: opts.TaxRate,
		logger:  opts.Logger,
		carts:   make(map[string]*userCart),
	}
}

func (l *Ledger) cart(userID string) *userCart {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.carts[userID]
	if !ok {
		c = &userCart{}
		l.carts[userID] = c
	}
	return c
}

// Add upserts a product into the user's cart. Adding an already present
// (product, size, color) variant increments its quantity instead of creating
// a duplicate line. Unknown products and products with insufficient stock
// fail with ErrNotFound / ErrOutOfStock so callers can relay the condition.
func (l *Ledger) Add(ctx context.Context, userID, productID string, qty int, size, color string) (Summary, error) {
	if qty < 1 {
		qty = 1
	}

	product, ok := l.catalog.Get(ctx, productID)
	if !ok {
		return Summary{}, fmt.Errorf("add %q: %w", productID, ErrNotFound)
	}
	if product.Stock < qty {
		return Summary{}, fmt.Errorf("add %q: only %d in stock: %w", productID, product.Stock, ErrOutOfStock)
	}

	c := l.cart(userID)
	c.mu.Lock()
	upserted := false
	for i := range c.lines {
		ln := &c.lines[i]
		if ln.ProductID == product.ID && ln.SelectedSize == size && ln.SelectedColor == color {
			ln.Quantity += qty
			upserted = true
			break
		}
	}
	if !upserted {
		c.lines = append(c.lines, line{ProductID: product.ID, Quantity: qty, SelectedSize: size, SelectedColor: color})
	}
	summary := l.summarizeLocked(ctx, c)
	c.mu.Unlock()

	l.logger.Info("cart.added", "user_id", userID, "product_id", product.ID, "quantity", qty)
	return summary, nil
}

// Remove deletes every line for the given product id. Removing a product that
// is not in the cart fails with ErrNotFound.
func (l *Ledger) Remove(ctx context.Context, userID, productID string) (Summary, error) {
	c := l.cart(userID)
	c.mu.Lock()
	kept := c.lines[:0]
	removed := false
	for _, ln := range c.lines {
		if ln.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, ln)
	}
	c.lines = kept
	summary := l.summarizeLocked(ctx, c)
	c.mu.Unlock()

	if !removed {
		return summary, fmt.Errorf("remove %q: not in cart: %w", productID, ErrNotFound)
	}

	l.logger.Info("cart.removed", "user_id", userID, "product_id", productID)
	return summary, nil
}

// UpdateQuantity sets the quantity for a product's line. A quantity of zero
// or less removes the line; a zero-quantity line is never stored. Updating a
// product that is not in the cart fails with ErrNotFound.
func (l *Ledger) UpdateQuantity(ctx context.Context, userID, productID string, qty int) (Summary, error) {
	if qty <= 0 {
		return l.Remove(ctx, userID, productID)
	}

	c := l.cart(userID)
	c.mu.Lock()
	updated := false
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = qty
			updated = true
			break
		}
	}
	summary := l.summarizeLocked(ctx, c)
	c.mu.Unlock()

	if !updated {
		return summary, fmt.Errorf("update %q: not in cart: %w", productID, ErrNotFound)
	}
	return summary, nil
}

// Clear removes every line in the user's cart. Used when a checkout session
// completes.
func (l *Ledger) Clear(ctx context.Context, userID string) error {
	c := l.cart(userID)
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
	l.logger.Info("cart.cleared", "user_id", userID)
	return nil
}

// Summary derives the current cart view for a user.
func (l *Ledger) Summary(ctx context.Context, userID string) Summary {
	c := l.cart(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return l.summarizeLocked(ctx, c)
}

// summarizeLocked recomputes totals from the line items. Lines whose product
// vanished from the catalog are skipped rather than failing the whole cart.
func (l *Ledger) summarizeLocked(ctx context.Context, c *userCart) Summary {
	summary := Summary{Items: []Item{}, Merchants: []string{}}
	merchants := make(map[string]bool)

	for _, ln := range c.lines {
		product, ok := l.catalog.Get(ctx, ln.ProductID)
		if !ok {
			continue
		}
		item := Item{
			ProductID:     ln.ProductID,
			Name:          product.Name,
			UnitPrice:     product.Price,
			Quantity:      ln.Quantity,
			ImageURL:      product.ImageURL,
			MerchantID:    product.MerchantID,
			MerchantName:  product.MerchantName,
			SelectedSize:  ln.SelectedSize,
			SelectedColor: ln.SelectedColor,
			LineTotal:     roundCents(product.Price * float64(ln.Quantity)),
		}
		summary.Items = append(summary.Items, item)
		summary.ItemCount += ln.Quantity
		merchants[product.MerchantName] = true
	}

	var subtotal float64
	for _, item := range summary.Items {
		subtotal += item.LineTotal
	}
	summary.Subtotal = roundCents(subtotal)
	summary.Tax = roundCents(summary.Subtotal * l.taxRate)
	summary.Total = roundCents(summary.Subtotal + summary.Tax)

	for name := range merchants {
		summary.Merchants = append(summary.Merchants, name)
	}
	sort.Strings(summary.Merchants)

	return summary
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package catalog defines the product data model and the Store abstraction
// over the product catalog. The catalog is an external collaborator from the
// orchestration engine's point of view: products are immutable snapshots per
// query and all access goes through the Store interface.
package catalog

import "context"

// Attributes holds optional per-product variant metadata.
type Attributes struct {
	Sizes  []string `json:"sizes,omitempty"`
	Colors []string `json:"colors,omitempty"`
	Brand  string   `json:"brand,omitempty"`
}

// Product is an immutable snapshot of a catalog entry.
// Invariants: Price >= 0, Stock >= 0.
type Product struct {
	ID           string     `json:"id"`
	SKU          string     `json:"sku"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	CategoryPath []string   `json:"category_path,omitempty"`
	Price        float64    `json:"price"`
	Stock        int        `json:"stock"`
	Rating       float64    `json:"rating"`
	ReviewCount  int        `json:"review_count"`
	ImageURL     string     `json:"image_url,omitempty"`
	Attributes   Attributes `json:"attributes"`
	KeyFeatures  []string   `json:"key_features,omitempty"`
	MerchantID   string     `json:"merchant_id"`
	MerchantName string     `json:"merchant_name"`
}

// Merchant identifies a seller whose products appear in the catalog.
type Merchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Filters narrows search and browse results. Zero values mean "no filter".
// InStockOnly defaults to true at the call sites that care about purchase
// intent; the zero value here intentionally does not filter.
type Filters struct {
	Category    string
	Brand       string
	MinPrice    float64
	MaxPrice    float64
	InStockOnly bool
}

// Store provides read access to the product catalog.
//
// Search is the keyword half of hybrid retrieval: ranked by simple token
// matching, no embedding involved. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns a product by ID or SKU, or false if unknown.
	Get(ctx context.Context, id string) (Product, bool)

	// Search returns products whose searchable text contains every token of
	// the query, best matches first, after applying filters.
	Search(ctx context.Context, query string, filters Filters) ([]Product, error)

	// ByCategory lists up to limit products in a category.
	ByCategory(ctx context.Context, category string, limit int) ([]Product, error)

	// All returns every product in insertion order.
	All(ctx context.Context) []Product

	// Merchants returns the distinct merchants present in the catalog.
	Merchants(ctx context.Context) []Merchant
}

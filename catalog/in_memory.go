package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// InMemoryStore is a process-local Store backed by a slice of products with
// secondary indexes by ID and SKU. Insertion order is preserved so ranking
// ties stay deterministic.
type InMemoryStore struct {
	mu       sync.RWMutex
	products []Product
	byID     map[string]int
	bySKU    map[string]int
}

// NewInMemoryStore constructs a store pre-populated with the given products.
// Duplicate IDs overwrite earlier entries.
func NewInMemoryStore(products []Product) *InMemoryStore {
	s := &InMemoryStore{byID: make(map[string]int), bySKU: make(map[string]int)}
	for _, p := range products {
		s.add(p)
	}
	return s
}

// LoadFromFile reads a JSON array of products from disk and returns a
// populated store.
func LoadFromFile(path string) (*InMemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	return NewInMemoryStore(products), nil
}

func (s *InMemoryStore) add(p Product) {
	if idx, ok := s.byID[p.ID]; ok {
		s.products[idx] = p
		return
	}
	s.products = append(s.products, p)
	s.byID[p.ID] = len(s.products) - 1
	if p.SKU != "" {
		s.bySKU[p.SKU] = len(s.products) - 1
	}
}

// Get returns a product by ID or SKU.
func (s *InMemoryStore) Get(_ context.Context, id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byID[id]; ok {
		return s.products[idx], true
	}
	if idx, ok := s.bySKU[id]; ok {
		return s.products[idx], true
	}
	return Product{}, false
}

// Search matches products whose combined text contains every query token.
// An empty query matches everything (subject to filters). Results are ordered
// by descending rating with catalog insertion order breaking ties.
func (s *InMemoryStore) Search(_ context.Context, query string, filters Filters) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := strings.Fields(strings.ToLower(query))

	type hit struct {
		product Product
		order   int
	}
	var hits []hit

	for i, p := range s.products {
		if !matchesTokens(p, tokens) {
			continue
		}
		if !passesFilters(p, filters) {
			continue
		}
		hits = append(hits, hit{product: p, order: i})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].product.Rating != hits[j].product.Rating {
			return hits[i].product.Rating > hits[j].product.Rating
		}
		return hits[i].order < hits[j].order
	})

	results := make([]Product, len(hits))
	for i, h := range hits {
		results[i] = h.product
	}
	return results, nil
}

// ByCategory lists products in a category, best rated first.
func (s *InMemoryStore) ByCategory(ctx context.Context, category string, limit int) ([]Product, error) {
	results, err := s.Search(ctx, "", Filters{Category: category})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// All returns a copy of every product in insertion order.
func (s *InMemoryStore) All(_ context.Context) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Merchants returns distinct merchants in first-seen order.
func (s *InMemoryStore) Merchants(_ context.Context) []Merchant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var merchants []Merchant
	for _, p := range s.products {
		if seen[p.MerchantID] {
			continue
		}
		seen[p.MerchantID] = true
		merchants = append(merchants, Merchant{ID: p.MerchantID, Name: p.MerchantName})
	}
	return merchants
}

func matchesTokens(p Product, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}

	var b strings.Builder
	b.WriteString(p.SKU)
	b.WriteByte(' ')
	b.WriteString(p.Name)
	b.WriteByte(' ')
	b.WriteString(p.Description)
	b.WriteByte(' ')
	b.WriteString(p.Category)
	b.WriteByte(' ')
	b.WriteString(p.Attributes.Brand)
	b.WriteByte(' ')
	b.WriteString(strings.Join(p.KeyFeatures, " "))
	b.WriteByte(' ')
	b.WriteString(p.MerchantName)
	text := strings.ToLower(b.String())

	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	return true
}

func passesFilters(p Product, f Filters) bool {
	if f.Category != "" && !strings.Contains(strings.ToLower(p.Category), strings.ToLower(f.Category)) {
		return false
	}
	if f.Brand != "" && !strings.Contains(strings.ToLower(p.Attributes.Brand), strings.ToLower(f.Brand)) {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	if f.InStockOnly && p.Stock <= 0 {
		return false
	}
	return true
}

// Package order abstracts the external order/fulfillment store consulted by
// the get_order_status tool. Only read access is modeled; order creation
// belongs to the payment pipeline outside this engine.
package order

import (
	"context"
	"sync"
	"time"
)

// Status describes the fulfillment state of a placed order.
type Status struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	ShippedAt         string `json:"shipped_at,omitempty"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
	CurrentLocation   string `json:"current_location,omitempty"`
	TrackingURL       string `json:"tracking_url,omitempty"`
}

// Store provides order lookups.
type Store interface {
	Get(ctx context.Context, orderID string) (Status, bool)
}

// InMemoryStore is a process-local Store, optionally seeded with demo orders.
type InMemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Status
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orders: make(map[string]Status)}
}

// NewSeededStore returns a store populated with demo orders so the assistant
// has something to look up in local development.
func NewSeededStore() *InMemoryStore {
	now := time.Now()
	s := NewInMemoryStore()
	s.Put(Status{
		OrderID:           "ORD-2024-001",
		Status:            "In Transit",
		ShippedAt:         now.AddDate(0, 0, -2).Format(time.RFC3339),
		EstimatedDelivery: now.AddDate(0, 0, 3).Format(time.RFC3339),
		CurrentLocation:   "Distribution Center - Los Angeles",
		TrackingURL:       "https://tracking.example.com/ORD-2024-001",
	})
	s.Put(Status{
		OrderID:           "ORD-2024-002",
		Status:            "Delivered",
		ShippedAt:         now.AddDate(0, 0, -5).Format(time.RFC3339),
		EstimatedDelivery: now.AddDate(0, 0, -1).Format(time.RFC3339),
		CurrentLocation:   "Delivered",
		TrackingURL:       "https://tracking.example.com/ORD-2024-002",
	})
	return s
}

// Put stores or replaces an order status.
func (s *InMemoryStore) Put(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[status.OrderID] = status
}

// Get returns the status for an order id.
func (s *InMemoryStore) Get(_ context.Context, orderID string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.orders[orderID]
	return st, ok
}

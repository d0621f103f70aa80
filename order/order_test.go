package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	s := NewInMemoryStore()
	s.Put(Status{OrderID: "ORD-1", Status: "Processing"})

	got, ok := s.Get(context.Background(), "ORD-1")
	require.True(t, ok)
	assert.Equal(t, "Processing", got.Status)

	s.Put(Status{OrderID: "ORD-1", Status: "Shipped"})
	got, _ = s.Get(context.Background(), "ORD-1")
	assert.Equal(t, "Shipped", got.Status)

	_, ok = s.Get(context.Background(), "ORD-2")
	assert.False(t, ok)
}

func TestSeededStoreHasDemoOrders(t *testing.T) {
	s := NewSeededStore()

	inTransit, ok := s.Get(context.Background(), "ORD-2024-001")
	require.True(t, ok)
	assert.Equal(t, "In Transit", inTransit.Status)
	assert.NotEmpty(t, inTransit.TrackingURL)

	delivered, ok := s.Get(context.Background(), "ORD-2024-002")
	require.True(t, ok)
	assert.Equal(t, "Delivered", delivered.Status)
}

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProducts() []Product {
	return []Product{
		{
			ID: "prod_001", SKU: "SKU-001", Name: "Trail Runner X", Category: "shoes",
			Description: "Waterproof trail running shoe", Price: 129.99, Stock: 10, Rating: 4.7,
			Attributes: Attributes{Brand: "Peak"}, MerchantID: "merch_01", MerchantName: "Peak Outfitters",
		},
		{
			ID: "prod_002", SKU: "SKU-002", Name: "Road Glide", Category: "shoes",
			Description: "Cushioned road running shoe", Price: 99.99, Stock: 0, Rating: 4.2,
			Attributes: Attributes{Brand: "Stride"}, MerchantID: "merch_02", MerchantName: "Stride Sports",
		},
		{
			ID: "prod_003", SKU: "SKU-003", Name: "Summit Jacket", Category: "jackets",
			Description: "Insulated waterproof shell", Price: 199.99, Stock: 5, Rating: 4.9,
			Attributes: Attributes{Brand: "Peak"}, MerchantID: "merch_01", MerchantName: "Peak Outfitters",
		},
	}
}

func TestGetByIDAndSKU(t *testing.T) {
	store := NewInMemoryStore(seedProducts())
	ctx := context.Background()

	p, ok := store.Get(ctx, "prod_001")
	require.True(t, ok)
	assert.Equal(t, "Trail Runner X", p.Name)

	p, ok = store.Get(ctx, "SKU-002")
	require.True(t, ok)
	assert.Equal(t, "prod_002", p.ID)

	_, ok = store.Get(ctx, "prod_999")
	assert.False(t, ok)
}

func TestSearchRequiresEveryToken(t *testing.T) {
	store := NewInMemoryStore(seedProducts())
	ctx := context.Background()

	got, err := store.Search(ctx, "waterproof running", Filters{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prod_001", got[0].ID)

	got, err = store.Search(ctx, "waterproof unicorn", Filters{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchOrdersByRating(t *testing.T) {
	store := NewInMemoryStore(seedProducts())

	got, err := store.Search(context.Background(), "waterproof", Filters{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "prod_003", got[0].ID)
	assert.Equal(t, "prod_001", got[1].ID)
}

func TestSearchEmptyQueryMatchesAll(t *testing.T) {
	store := NewInMemoryStore(seedProducts())

	got, err := store.Search(context.Background(), "", Filters{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearchFilters(t *testing.T) {
	store := NewInMemoryStore(seedProducts())
	ctx := context.Background()

	t.Run("Category", func(t *testing.T) {
		got, err := store.Search(ctx, "", Filters{Category: "shoes"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("Brand", func(t *testing.T) {
		got, err := store.Search(ctx, "", Filters{Brand: "peak"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("PriceRange", func(t *testing.T) {
		got, err := store.Search(ctx, "", Filters{MinPrice: 100, MaxPrice: 150})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "prod_001", got[0].ID)
	})

	t.Run("InStockOnly", func(t *testing.T) {
		got, err := store.Search(ctx, "running", Filters{InStockOnly: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "prod_001", got[0].ID)
	})
}

func TestByCategoryHonorsLimit(t *testing.T) {
	store := NewInMemoryStore(seedProducts())

	got, err := store.ByCategory(context.Background(), "shoes", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prod_001", got[0].ID)
}

func TestMerchantsDistinctFirstSeen(t *testing.T) {
	store := NewInMemoryStore(seedProducts())

	merchants := store.Merchants(context.Background())
	require.Len(t, merchants, 2)
	assert.Equal(t, "merch_01", merchants[0].ID)
	assert.Equal(t, "Peak Outfitters", merchants[0].Name)
}

func TestDuplicateIDOverwrites(t *testing.T) {
	products := seedProducts()
	products = append(products, Product{ID: "prod_001", Name: "Trail Runner X v2", Category: "shoes", Rating: 4.8})
	store := NewInMemoryStore(products)

	p, ok := store.Get(context.Background(), "prod_001")
	require.True(t, ok)
	assert.Equal(t, "Trail Runner X v2", p.Name)
	assert.Len(t, store.All(context.Background()), 3)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	data := `[{"id":"prod_010","sku":"SKU-010","name":"Desk Lamp","category":"home","price":24.99,"stock":7}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	store, err := LoadFromFile(path)
	require.NoError(t, err)

	p, ok := store.Get(context.Background(), "prod_010")
	require.True(t, ok)
	assert.Equal(t, "Desk Lamp", p.Name)
	assert.Equal(t, 24.99, p.Price)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// Package testutil provides shared fixtures for package tests.
package testutil

import "github.com/hupe1980/shopmesh/catalog"

// Products returns a small fixed catalog slice covering the cases tests care
// about: in stock, out of stock, multiple categories and merchants.
func Products() []catalog.Product {
	return []catalog.Product{
		{
			ID: "prod_001", SKU: "SKU-001", Name: "Trail Runner X", Category: "shoes",
			Description: "Waterproof trail running shoe with aggressive grip",
			Price:       129.99, Stock: 10, Rating: 4.7, ReviewCount: 182,
			Attributes: catalog.Attributes{Brand: "Peak", Sizes: []string{"9", "10", "11"}, Colors: []string{"black", "orange"}},
			MerchantID: "merch_01", MerchantName: "Peak Outfitters",
		},
		{
			ID: "prod_002", SKU: "SKU-002", Name: "Road Glide", Category: "shoes",
			Description: "Cushioned road running shoe for daily miles",
			Price:       99.99, Stock: 0, Rating: 4.2, ReviewCount: 95,
			Attributes: catalog.Attributes{Brand: "Stride", Sizes: []string{"8", "9"}},
			MerchantID: "merch_02", MerchantName: "Stride Sports",
		},
		{
			ID: "prod_003", SKU: "SKU-003", Name: "Summit Jacket", Category: "jackets",
			Description: "Insulated waterproof shell for alpine conditions",
			Price:       199.99, Stock: 5, Rating: 4.9, ReviewCount: 311,
			Attributes: catalog.Attributes{Brand: "Peak", Sizes: []string{"M", "L"}},
			MerchantID: "merch_01", MerchantName: "Peak Outfitters",
		},
		{
			ID: "prod_004", SKU: "SKU-004", Name: "City Tote", Category: "bags",
			Description: "Everyday canvas tote with laptop sleeve",
			Price:       49.99, Stock: 25, Rating: 4.0, ReviewCount: 41,
			Attributes: catalog.Attributes{Brand: "Urbane", Colors: []string{"tan", "navy"}},
			MerchantID: "merch_03", MerchantName: "Urbane Goods",
		},
	}
}

// Catalog returns an in-memory store seeded with Products.
func Catalog() *catalog.InMemoryStore {
	return catalog.NewInMemoryStore(Products())
}

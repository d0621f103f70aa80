package tool

import (
	"fmt"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
)

// ProductDetailsResult is the payload returned by the get_product_details tool.
type ProductDetailsResult struct {
	Product catalog.Product `json:"product"`
}

// ToolProducts implements ProductCarrier.
func (r ProductDetailsResult) ToolProducts() []catalog.Product {
	return []catalog.Product{r.Product}
}

// NewProductDetailsTool returns the full record for a single product id.
func NewProductDetailsTool(store catalog.Store) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_id": map[string]any{
				"type":        "string",
				"description": "Catalog product id, e.g. 'prod_001'",
			},
		},
		"required": []string{"product_id"},
	}

	return NewFunctionTool(
		"get_product_details",
		"Get full details for a single product: description, price, stock, sizes, colors, rating and merchant.",
		parameters,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			id := stringArg(args, "product_id")

			product, ok := store.Get(toolCtx.Context(), id)
			if !ok {
				return nil, NewToolError(
					"get_product_details",
					fmt.Sprintf("product %s not found", id),
					"NOT_FOUND",
				)
			}

			return ProductDetailsResult{Product: product}, nil
		},
	)
}

// BrowseCategoryResult is the payload returned by the browse_category tool.
type BrowseCategoryResult struct {
	Category string            `json:"category"`
	Total    int               `json:"total"`
	Products []catalog.Product `json:"products"`
}

// ToolProducts implements ProductCarrier.
func (r BrowseCategoryResult) ToolProducts() []catalog.Product { return r.Products }

// NewBrowseCategoryTool lists products within a category, best rated first.
func NewBrowseCategoryTool(store catalog.Store) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category": map[string]any{
				"type":        "string",
				"description": "Category name to browse, e.g. 'electronics'",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of products to return (default 10)",
			},
		},
		"required": []string{"category"},
	}

	return NewFunctionTool(
		"browse_category",
		"List products in a catalog category, best rated first.",
		parameters,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			category := stringArg(args, "category")
			limit := intArg(args, "limit", 10)

			products, err := store.ByCategory(toolCtx.Context(), category, limit)
			if err != nil {
				return nil, fmt.Errorf("browse failed: %w", err)
			}

			return BrowseCategoryResult{Category: category, Total: len(products), Products: products}, nil
		},
	)
}

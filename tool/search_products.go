package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/search"
)

// maxToolResults caps how many products a single search returns to the model.
const maxToolResults = 6

// SearchProductsResult is the payload returned by the search_products tool.
type SearchProductsResult struct {
	Query    string            `json:"query"`
	Total    int               `json:"total"`
	Products []catalog.Product `json:"products"`
}

// ToolProducts implements ProductCarrier.
func (r SearchProductsResult) ToolProducts() []catalog.Product { return r.Products }

// NewSearchProductsTool exposes hybrid catalog search to the model. Filters
// are optional; an empty result set is a valid outcome, not an error.
func NewSearchProductsTool(svc *search.Service) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Free-text search query, e.g. 'waterproof trail running shoes'",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Restrict results to a category, e.g. 'shoes'",
			},
			"brand": map[string]any{
				"type":        "string",
				"description": "Restrict results to a brand name",
			},
			"min_price": map[string]any{
				"type":        "number",
				"description": "Minimum price in USD",
			},
			"max_price": map[string]any{
				"type":        "number",
				"description": "Maximum price in USD",
			},
			"in_stock_only": map[string]any{
				"type":        "boolean",
				"description": "Only return products currently in stock",
			},
		},
		"required": []string{"query"},
	}

	return NewFunctionTool(
		"search_products",
		"Search the product catalog. Combines semantic and keyword matching and supports category, brand, price and stock filters.",
		parameters,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query := strings.TrimSpace(stringArg(args, "query"))
			if query == "" {
				return nil, NewToolError("search_products", "query must not be empty", "VALIDATION_ERROR")
			}

			filters := catalog.Filters{
				Category:    stringArg(args, "category"),
				Brand:       stringArg(args, "brand"),
				InStockOnly: boolArg(args, "in_stock_only"),
			}
			if v, ok := floatArg(args, "min_price"); ok {
				filters.MinPrice = v
			}
			if v, ok := floatArg(args, "max_price"); ok {
				filters.MaxPrice = v
			}

			products, err := svc.Search(toolCtx.Context(), query, filters)
			if err != nil {
				return nil, fmt.Errorf("search failed: %w", err)
			}

			total := len(products)
			if len(products) > maxToolResults {
				products = products[:maxToolResults]
			}

			return SearchProductsResult{Query: query, Total: total, Products: products}, nil
		},
	)
}

// stringArg reads an optional string argument.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// boolArg reads an optional boolean argument.
func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// floatArg reads an optional numeric argument. JSON numbers decode as float64.
func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// intArg reads an optional integer argument with a default.
func intArg(args map[string]any, key string, def int) int {
	if v, ok := floatArg(args, key); ok {
		return int(v)
	}
	return def
}

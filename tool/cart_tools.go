package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/core"
)

// CartResult is the payload returned by all cart mutating and viewing tools.
// Totals are always the freshly derived values, never stale snapshots.
type CartResult struct {
	Message string       `json:"message,omitempty"`
	Cart    cart.Summary `json:"cart"`
}

// NewAddToCartTool adds (or upserts) a product line in the caller's cart.
// Out-of-stock products are rejected with a structured error the model can
// relay to the shopper.
func NewAddToCartTool(ledger *cart.Ledger) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_id": map[string]any{
				"type":        "string",
				"description": "Catalog product id to add",
			},
			"quantity": map[string]any{
				"type":        "integer",
				"description": "Quantity to add (default 1)",
			},
			"size": map[string]any{
				"type":        "string",
				"description": "Selected size variant, if applicable",
			},
			"color": map[string]any{
				"type":        "string",
				"description": "Selected color variant, if applicable",
			},
		},
		"required": []string{"product_id"},
	}

	return NewFunctionTool(
		"add_to_cart",
		"Add a product to the shopper's cart. Re-adding the same product, size and color increases the quantity.",
		parameters,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			productID := stringArg(args, "product_id")
			qty := intArg(args, "quantity", 1)
			if qty < 1 {
				return nil, NewToolError("add_to_cart", "quantity must be at least 1", "VALIDATION_ERROR")
			}

			summary, err := ledger.Add(
				toolCtx.Context(),
				toolCtx.UserID(),
				productID,
				qty,
				stringArg(args, "size"),
				stringArg(args, "color"),
			)
			if err != nil {
				switch {
				case errors.Is(err, cart.ErrNotFound):
					return nil, NewToolError("add_to_cart", fmt.Sprintf("product %s not found", productID), "NOT_FOUND")
				case errors.Is(err, cart.ErrOutOfStock):
					return nil, NewToolError("add_to_cart", fmt.Sprintf("product %s has insufficient stock", productID), "OUT_OF_STOCK")
				default:
					return nil, err
				}
			}

			return CartResult{
				Message: fmt.Sprintf("Added %d x %s to cart", qty, productID),
				Cart:    summary,
			}, nil
		},
	)
}

// NewRemoveFromCartTool removes a product line from the caller's cart.
func NewRemoveFromCartTool(ledger *cart.Ledger) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_id": map[string]any{
				"type":        "string",
				"description": "Catalog product id to remove",
			},
		},
		"required": []string{"product_id"},
	}

	return NewFunctionTool(
		"remove_from_cart",
		"Remove a product from the shopper's cart entirely.",
		parameters,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			productID := stringArg(args, "product_id")

			summary, err := ledger.Remove(toolCtx.Context(), toolCtx.UserID(), productID)
			if err != nil {
				if errors.Is(err, cart.ErrNotFound) {
					return nil, NewToolError("remove_from_cart", fmt.Sprintf("product %s is not in the cart", productID), "NOT_FOUND")
				}
				return nil, err
			}

			return CartResult{
				Message: fmt.Sprintf("Removed %s from cart", productID),
				Cart:    summary,
			}, nil
		},
	)
}

// NewUpdateCartQuantityTool sets the quantity of an existing cart line.
// A quantity of zero removes the line.
func NewUpdateCartQuantityTool(ledger *cart.Ledger) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_id": map[string]any{
				"type":        "string",
				"description": "Catalog product id to update",
			},
			"quantity": map[string]any{
				"type":        "integer",
				"description": "New quantity. Zero removes the line.",
			},
		},
		"required": []string{"product_id", "quantity"},
	}

	return NewFunctionTool(
		"update_cart_quantity",
		"Change the quantity of a product already in the cart. Setting it to zero removes the product.",
		parameters,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			productID := stringArg(args, "product_id")
			qty := intArg(args, "quantity", 0)

			summary, err := ledger.UpdateQuantity(toolCtx.Context(), toolCtx.UserID(), productID, qty)
			if err != nil {
				if errors.Is(err, cart.ErrNotFound) {
					return nil, NewToolError("update_cart_quantity", fmt.Sprintf("product %s is not in the cart", productID), "NOT_FOUND")
				}
				return nil, err
			}

			return CartResult{
				Message: fmt.Sprintf("Set %s quantity to %d", productID, qty),
				Cart:    summary,
			}, nil
		},
	)
}

// NewViewCartTool returns the current cart with derived totals.
func NewViewCartTool(ledger *cart.Ledger) *FunctionTool {
	parameters := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}

	return NewFunctionTool(
		"view_cart",
		"Show the shopper's current cart contents with subtotal, tax and total.",
		parameters,
		func(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
			summary := ledger.Summary(toolCtx.Context(), toolCtx.UserID())

			return CartResult{Cart: summary}, nil
		},
	)
}

package tool

import (
	"fmt"

	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/order"
)

// OrderStatusResult is the payload returned by the get_order_status tool.
type OrderStatusResult struct {
	Order order.Status `json:"order"`
}

// NewOrderStatusTool looks up fulfillment status for a placed order.
func NewOrderStatusTool(store order.Store) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"order_id": map[string]any{
				"type":        "string",
				"description": "Order id, e.g. 'ORD-2024-001'",
			},
		},
		"required": []string{"order_id"},
	}

	return NewFunctionTool(
		"get_order_status",
		"Look up shipping and delivery status for a placed order by order id.",
		parameters,
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			orderID := stringArg(args, "order_id")

			status, ok := store.Get(toolCtx.Context(), orderID)
			if !ok {
				return nil, NewToolError(
					"get_order_status",
					fmt.Sprintf("order %s not found", orderID),
					"NOT_FOUND",
				)
			}

			return OrderStatusResult{Order: status}, nil
		},
	)
}

package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/memory"
)

const systemPrompt = `You are a helpful shopping assistant for an online marketplace.

CRITICAL RULES:
1. Only discuss products and merchants available in our catalog. Never recommend or compare against products from other retailers.
2. Never invent discount codes, promo codes, coupons or sales. If asked about discounts, say you cannot verify current promotions.
3. Never claim a product is in stock unless a tool result from this conversation confirms its stock level.
4. Never reveal or request personal information such as payment details, social security numbers or addresses.
5. Use the provided tools to search the catalog, inspect products, manage the cart and check orders. Base every factual claim on tool results.
6. Keep answers concise and friendly. When you mention a product, include its product id (for example prod_001).`

// buildInstructions assembles the per-request system instructions: the fixed
// rules followed by whatever session context exists. Sections with nothing to
// say are omitted entirely rather than rendered empty.
func buildInstructions(conv memory.Conversation, cartSummary cart.Summary) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if conv.Summary != "" {
		b.WriteString("\n\nEARLIER IN THIS CONVERSATION:\n")
		b.WriteString(conv.Summary)
	}

	if len(conv.RecentProducts) > 0 {
		b.WriteString("\n\nRECENTLY DISCUSSED PRODUCTS: ")
		b.WriteString(strings.Join(conv.RecentProducts, ", "))
	}

	if len(conv.Preferences) > 0 {
		b.WriteString("\n\nSHOPPER PREFERENCES:")
		keys := make([]string, 0, len(conv.Preferences))
		for k := range conv.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n- %s: %s", k, conv.Preferences[k]))
		}
	}

	if cartSummary.ItemCount > 0 {
		b.WriteString(fmt.Sprintf(
			"\n\nCURRENT CART: %d item(s), total $%.2f (",
			cartSummary.ItemCount, cartSummary.Total,
		))
		names := make([]string, 0, len(cartSummary.Items))
		for _, item := range cartSummary.Items {
			names = append(names, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(")")
	}

	return b.String()
}

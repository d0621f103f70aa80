package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/cart"
	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/internal/util"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/order"
	"github.com/hupe1980/shopmesh/search"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	if req == nil { // reflection may produce []any
		ifaceReq, _ := schema["required"].([]any)
		for _, v := range ifaceReq {
			req = append(req, v.(string))
		}
	}
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

// -------------------- FunctionTool Tests --------------------

func testToolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), "user-1", "sess-1", fcID, logging.NoOpLogger{})
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(testToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		// Use interface slice to match ValidateParameters implementation expectation
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(testToolContext("fc2"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(testToolContext("fc3"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegisterAndDefinitions(t *testing.T) {
	reg := NewRegistry()
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	require.NoError(t, reg.Register(NewFunctionTool("alpha", "First", params, nil)))
	require.NoError(t, reg.Register(NewFunctionTool("beta", "Second", params, nil)))

	// Duplicate names rejected
	err := reg.Register(NewFunctionTool("alpha", "Dup", params, nil))
	assert.Error(t, err)

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	// Registration order preserved
	assert.Equal(t, "alpha", defs[0].Function.Name)
	assert.Equal(t, "beta", defs[1].Function.Name)
	assert.Equal(t, "function", defs[0].Type)
}

// -------------------- Executor Tests --------------------

func fixtureCatalog() *catalog.InMemoryStore {
	return catalog.NewInMemoryStore(fixtureProducts())
}

func fixtureProducts() []catalog.Product {
	return []catalog.Product{
		{
			ID: "prod_001", SKU: "SKU-001", Name: "Trail Runner X", Category: "shoes",
			Description: "Waterproof trail running shoe", Price: 129.99, Stock: 10, Rating: 4.7,
			Attributes: catalog.Attributes{Brand: "Peak", Sizes: []string{"9", "10"}, Colors: []string{"black"}},
			MerchantID: "merch_01", MerchantName: "Peak Outfitters",
		},
		{
			ID: "prod_002", SKU: "SKU-002", Name: "Road Glide", Category: "shoes",
			Description: "Cushioned road running shoe", Price: 99.99, Stock: 0, Rating: 4.2,
			Attributes: catalog.Attributes{Brand: "Stride"},
			MerchantID: "merch_02", MerchantName: "Stride Sports",
		},
		{
			ID: "prod_003", SKU: "SKU-003", Name: "Summit Jacket", Category: "jackets",
			Description: "Insulated waterproof jacket", Price: 199.99, Stock: 5, Rating: 4.9,
			Attributes: catalog.Attributes{Brand: "Peak"},
			MerchantID: "merch_01", MerchantName: "Peak Outfitters",
		},
	}
}

func newTestExecutor(t *testing.T) (*Executor, *Registry) {
	t.Helper()

	reg := NewRegistry()
	exec := NewExecutor(reg, logging.NoOpLogger{})

	return exec, reg
}

func TestExecutor_BatchPreservesOrder(t *testing.T) {
	exec, reg := newTestExecutor(t)
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	reg.MustRegister(NewFunctionTool("one", "", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "r1", nil
	}))
	reg.MustRegister(NewFunctionTool("two", "", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "r2", nil
	}))

	results := exec.Execute(context.Background(), "user-1", "sess-1", []core.FunctionCall{
		{ID: "c1", Name: "one"},
		{ID: "c2", Name: "two"},
		{ID: "c3", Name: "one"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].CallID)
	assert.Equal(t, "c2", results[1].CallID)
	assert.Equal(t, "c3", results[2].CallID)
	assert.Equal(t, StatusSuccess, results[0].Status)
}

func TestExecutor_UnknownToolYieldsErrorResult(t *testing.T) {
	exec, _ := newTestExecutor(t)

	results := exec.Execute(context.Background(), "user-1", "sess-1", []core.FunctionCall{
		{ID: "c1", Name: "missing"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Contains(t, results[0].Error, "not found")
	assert.Contains(t, results[0].Response, "error")
}

func TestExecutor_PanicIsolation(t *testing.T) {
	exec, reg := newTestExecutor(t)
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	reg.MustRegister(NewFunctionTool("boom", "", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		panic("kaboom")
	}))
	reg.MustRegister(NewFunctionTool("fine", "", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "ok", nil
	}))

	results := exec.Execute(context.Background(), "user-1", "sess-1", []core.FunctionCall{
		{ID: "c1", Name: "boom"},
		{ID: "c2", Name: "fine"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Contains(t, results[0].Error, "panicked")
	assert.Equal(t, StatusSuccess, results[1].Status)
}

func TestExecutor_ResultTruncation(t *testing.T) {
	exec, reg := newTestExecutor(t)
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	// Build a result whose serialized form clearly exceeds the cap.
	big := SearchProductsResult{Query: "everything"}
	for i := 0; i < 50; i++ {
		big.Products = append(big.Products, catalog.Product{
			ID:          "prod_bulk",
			Name:        strings.Repeat("long product name ", 10),
			Description: strings.Repeat("verbose description ", 20),
		})
	}
	big.Total = len(big.Products)

	reg.MustRegister(NewFunctionTool("big_search", "", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return big, nil
	}))

	results := exec.Execute(context.Background(), "user-1", "sess-1", []core.FunctionCall{
		{ID: "c1", Name: "big_search"},
	})

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, StatusSuccess, res.Status)
	// Full product list still available to the caller for frames / guardrails
	assert.Len(t, res.Products, 50)
	// Model-facing response truncated with a marker
	assert.Contains(t, res.Response, `"truncated":true`)
	count := strings.Count(res.Response, `"prod_bulk"`)
	assert.Equal(t, TruncatedProductCount, count)
}

func TestExecutor_TruncationKeepsValidUTF8(t *testing.T) {
	exec, reg := newTestExecutor(t)
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	// An oversized payload with no products array falls through to the raw
	// cut, which must land on a rune boundary even for multi-byte text.
	reg.MustRegister(NewFunctionTool("big_notes", "", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return map[string]any{"notes": strings.Repeat("größenwahn 寸法 ", 600)}, nil
	}))

	results := exec.Execute(context.Background(), "user-1", "sess-1", []core.FunctionCall{
		{ID: "c1", Name: "big_notes"},
	})

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, StatusSuccess, res.Status)
	assert.LessOrEqual(t, len(res.Response), MaxResultChars)
	assert.True(t, utf8.ValidString(res.Response))
}

// -------------------- Shopping Tool Tests --------------------

func TestSearchProductsTool(t *testing.T) {
	store := fixtureCatalog()
	svc := search.New(nil, store) // keyword-only
	searchTool := NewSearchProductsTool(svc)

	res, err := searchTool.Call(testToolContext("fc1"), map[string]any{"query": "waterproof"})
	require.NoError(t, err)

	sr, ok := res.(SearchProductsResult)
	require.True(t, ok)
	assert.Equal(t, 2, sr.Total)
	assert.Equal(t, sr.Products, sr.ToolProducts())

	// Category filter narrows results
	res, err = searchTool.Call(testToolContext("fc2"), map[string]any{"query": "waterproof", "category": "jackets"})
	require.NoError(t, err)
	sr = res.(SearchProductsResult)
	require.Len(t, sr.Products, 1)
	assert.Equal(t, "prod_003", sr.Products[0].ID)
}

func TestProductDetailsTool_NotFound(t *testing.T) {
	detailsTool := NewProductDetailsTool(fixtureCatalog())

	_, err := detailsTool.Call(testToolContext("fc1"), map[string]any{"product_id": "prod_999"})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", toolErr.Code)
}

func TestAddToCartTool_OutOfStock(t *testing.T) {
	store := fixtureCatalog()
	ledger := cart.NewLedger(store)
	addTool := NewAddToCartTool(ledger)

	// prod_002 has zero stock
	_, err := addTool.Call(testToolContext("fc1"), map[string]any{"product_id": "prod_002", "quantity": 1})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "OUT_OF_STOCK", toolErr.Code)

	// In-stock product succeeds and totals derive
	res, err := addTool.Call(testToolContext("fc2"), map[string]any{"product_id": "prod_001", "quantity": 2.0})
	require.NoError(t, err)
	cr := res.(CartResult)
	assert.InDelta(t, 259.98, cr.Cart.Subtotal, 0.001)
	assert.InDelta(t, cr.Cart.Subtotal+cr.Cart.Tax, cr.Cart.Total, 0.001)
}

func TestOrderStatusTool(t *testing.T) {
	statusTool := NewOrderStatusTool(order.NewSeededStore())

	res, err := statusTool.Call(testToolContext("fc1"), map[string]any{"order_id": "ORD-2024-001"})
	require.NoError(t, err)
	or := res.(OrderStatusResult)
	assert.Equal(t, "In Transit", or.Order.Status)

	_, err = statusTool.Call(testToolContext("fc2"), map[string]any{"order_id": "ORD-0000-000"})
	require.Error(t, err)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}

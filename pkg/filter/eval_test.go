package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalSrc(t *testing.T, src string, input any) any {
	t.Helper()
	node, err := Parse(src)
	require.NoError(t, err)
	out, err := Eval(node, input, nil, DefaultLimits())
	require.NoError(t, err)
	return out
}

func TestEvalAccessorAndArithmetic(t *testing.T) {
	input := map[string]any{"OrderTotal": map[string]any{"Amount": 89.99}}
	out := evalSrc(t, `.OrderTotal.Amount + 10`, input)
	assert.Equal(t, 99.99, out)
}

func TestEvalComparisonTypeMismatchIsFalse(t *testing.T) {
	out := evalSrc(t, `.a > .b`, map[string]any{"a": "x", "b": 5.0})
	assert.Equal(t, false, out)
}

func TestEvalFieldFilterMatchesScenarioS2(t *testing.T) {
	order := map[string]any{
		"AmazonOrderId": "123-1234567-1234567",
		"OrderStatus":   "Shipped",
		"OrderTotal":    map[string]any{"Amount": "89.99", "CurrencyCode": "GBP"},
		"PurchaseDate":  "2025-01-30T10:00:00Z",
	}
	expr := `{orderId: .AmazonOrderId, status: .OrderStatus, total: .OrderTotal.Amount, currency: .OrderTotal.CurrencyCode}`
	out := evalSrc(t, expr, order)
	want := map[string]any{
		"orderId":  "123-1234567-1234567",
		"status":   "Shipped",
		"total":    "89.99",
		"currency": "GBP",
	}
	assert.Equal(t, want, out)
}

func TestEvalRecordFilterMatchesScenarioS3(t *testing.T) {
	items := []any{
		map[string]any{"OrderItemId": "a", "ItemPrice": map[string]any{"Amount": "75.00"}},
		map[string]any{"OrderItemId": "b", "ItemPrice": map[string]any{"Amount": "25.00"}},
	}
	node, err := Parse(`filter(number(.ItemPrice.Amount) > $threshold)`)
	require.NoError(t, err)
	params, err := BindParams(map[string]any{"threshold": 50.0}, nil, nil)
	require.NoError(t, err)
	out, err := Eval(node, items, params, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, []any{items[0]}, out)
}

func TestEvalChainEquivalence(t *testing.T) {
	input := []any{
		map[string]any{"sku": "b", "price": 10.0},
		map[string]any{"sku": "a", "price": 20.0},
	}
	chained := evalSrc(t, `filter(.price > 5) | sort(.sku) | map(.sku)`, input)
	assert.Equal(t, []any{"a", "b"}, chained)
}

func TestEvalDepthLimitTriggersFilterFailed(t *testing.T) {
	src := "1"
	for i := 0; i < 40; i++ {
		src = "(" + src + " + 1)"
	}
	node, err := Parse(src)
	require.NoError(t, err)
	_, err = Eval(node, nil, nil, Limits{MaxDepth: 32, MaxNodes: 10000})
	require.Error(t, err)
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestEvalUnknownParameterFails(t *testing.T) {
	node, err := Parse(`$missing`)
	require.NoError(t, err)
	_, err = Eval(node, nil, nil, DefaultLimits())
	require.Error(t, err)
}

func TestEvalBuiltinsGroupSortSize(t *testing.T) {
	input := []any{
		map[string]any{"cat": "x", "n": 1.0},
		map[string]any{"cat": "y", "n": 2.0},
		map[string]any{"cat": "x", "n": 3.0},
	}
	out := evalSrc(t, `groupBy(.cat)`, input)
	grouped, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Len(t, grouped["x"], 2)
	assert.Len(t, grouped["y"], 1)

	size := evalSrc(t, `size()`, input)
	assert.Equal(t, 3.0, size)
}

func TestEvalRegexAndRound(t *testing.T) {
	assert.Equal(t, true, evalSrc(t, `regex(.sku, "^JL-", "")`, map[string]any{"sku": "JL-BC002"}))
	assert.Equal(t, 3.14, evalSrc(t, `round(3.14159, 2)`, nil))
}

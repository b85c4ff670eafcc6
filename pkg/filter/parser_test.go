package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccessorChain(t *testing.T) {
	n, err := Parse(`.OrderTotal.Amount`)
	require.NoError(t, err)
	assert.Equal(t, KindAccessor, n.Kind)
	assert.Equal(t, "Amount", n.Field)
	assert.Equal(t, KindAccessor, n.Target.Kind)
	assert.Equal(t, "OrderTotal", n.Target.Field)
}

func TestParsePrecedence(t *testing.T) {
	n, err := Parse(`1 + 2 * 3`)
	require.NoError(t, err)
	require.Equal(t, KindBinary, n.Kind)
	assert.Equal(t, "+", n.Op)
	assert.Equal(t, KindBinary, n.Right.Kind)
	assert.Equal(t, "*", n.Right.Op)
}

func TestParseComparisonAndBoolean(t *testing.T) {
	n, err := Parse(`.status == "Shipped" and .total > 50`)
	require.NoError(t, err)
	assert.Equal(t, "and", n.Op)
	assert.Equal(t, "==", n.Left.Op)
	assert.Equal(t, ">", n.Right.Op)
}

func TestParseNotIn(t *testing.T) {
	n, err := Parse(`.status not in ["Cancelled", "Pending"]`)
	require.NoError(t, err)
	assert.Equal(t, "not in", n.Op)
}

func TestParsePipeAndCall(t *testing.T) {
	n, err := Parse(`filter(.total > 50) | map(.sku) | sort()`)
	require.NoError(t, err)
	assert.Equal(t, KindPipe, n.Kind)
}

func TestParseObjectAndArrayConstructors(t *testing.T) {
	n, err := Parse(`{id: .OrderId, total: .OrderTotal.Amount}`)
	require.NoError(t, err)
	require.Equal(t, KindObject, n.Kind)
	assert.Len(t, n.Pairs, 2)

	arr, err := Parse(`[1, 2, 3]`)
	require.NoError(t, err)
	require.Equal(t, KindArray, arr.Kind)
	assert.Len(t, arr.Elems, 3)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(`.foo ++ bar`)
	assert.Error(t, err)
}

func TestParseRoundTripsAcrossExpressions(t *testing.T) {
	exprs := []string{
		`.a.b`,
		`1 + 2 * 3 - 4 / 2`,
		`.total > 50 and .status == "Shipped"`,
		`not .cancelled`,
		`filter(.price > 10) | map(.sku)`,
		`{id: .id, total: .total}`,
		`[1, "two", true, null]`,
		`$threshold + 1`,
		`.status not in ["A", "B"]`,
		`-.x ^ 2`,
	}
	for _, src := range exprs {
		n, err := Parse(src)
		require.NoError(t, err, src)
		printed := Print(n)
		n2, err := Parse(printed)
		require.NoError(t, err, printed)
		assert.Equal(t, n, n2, "round trip mismatch for %q -> %q", src, printed)
	}
}

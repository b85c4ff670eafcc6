package spapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/session"
)

func TestInventoryInStockFiltersZeroQuantity(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	body := `{"payload":{"inventorySummaries":[
		{"sku":"a","totalQuantity":0},
		{"sku":"b","totalQuantity":5}
	]}}`
	transport := &recordingTransport{status: 200, respBody: []byte(body)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.InventoryInStock(context.Background(), map[string]any{"token": token})
	require.True(t, env.Success)
	records, ok := env.Data.([]any)
	require.True(t, ok)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, "b", rec["sku"])
}

func TestInventoryInStockFBMReturnsBestEffortWarning(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	env := core.InventoryInStock(context.Background(), map[string]any{
		"token":           token,
		"fulfillmentType": "FBM",
	})
	require.True(t, env.Success)
	warning, ok := env.Meta.Extra["warning"].(string)
	require.True(t, ok)
	assert.Contains(t, warning, "best-effort")
}

func TestInventoryInStockRejectsUnknownMarketplace(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}
	env := core.InventoryInStock(context.Background(), map[string]any{
		"token":          token,
		"marketplaceIds": []any{"XX"},
	})
	assert.False(t, env.Success)
}

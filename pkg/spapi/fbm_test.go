package spapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/session"
)

func TestUpdateFbmInventoryAcceptsZeroQuantity(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.UpdateFbmInventory(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1", "quantity": float64(0),
	})
	assert.True(t, env.Success)
}

func TestUpdateFbmInventoryRejectsNegativeQuantity(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	env := core.UpdateFbmInventory(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1", "quantity": float64(-1),
	})
	assert.False(t, env.Success)
}

func TestUpdateFbmInventoryRejectsRestockDateInPast(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	env := core.UpdateFbmInventory(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1", "quantity": float64(5),
		"restockDate": time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
	})
	assert.False(t, env.Success)
}

func TestUpdateFbmInventoryRejectsHandlingTimeOutOfRange(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	env := core.UpdateFbmInventory(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1", "quantity": float64(5),
		"handlingTime": float64(31),
	})
	assert.False(t, env.Success)
}

func TestBulkUpdateFbmInventoryRejectsOversizedArray(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	updates := make([]any, MaxBulkUpdateSize+1)
	for i := range updates {
		updates[i] = map[string]any{"sku": "sku1", "sellerId": "S1", "quantity": float64(1)}
	}
	env := core.BulkUpdateFbmInventory(context.Background(), map[string]any{
		"token": token, "updatesJsonArray": updates,
	})
	assert.False(t, env.Success)
}

func TestBulkUpdateFbmInventoryReportsPerEntryFailures(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	updates := []any{
		map[string]any{"sku": "good-sku", "sellerId": "S1", "quantity": float64(1)},
		map[string]any{"sku": "bad|sku", "sellerId": "S1", "quantity": float64(1)},
	}
	env := core.BulkUpdateFbmInventory(context.Background(), map[string]any{
		"token": token, "updatesJsonArray": updates,
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "bad|sku")
}

func TestBulkUpdateFbmInventoryDispatchesEachValidEntry(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	updates := []any{
		map[string]any{"sku": "sku1", "sellerId": "S1", "quantity": float64(3)},
		map[string]any{"sku": "sku2", "sellerId": "S1", "quantity": float64(0)},
	}
	env := core.BulkUpdateFbmInventory(context.Background(), map[string]any{
		"token": token, "updatesJsonArray": updates,
	})
	require.True(t, env.Success)
	records, ok := env.Data.([]any)
	require.True(t, ok)
	assert.Len(t, records, 2)
}

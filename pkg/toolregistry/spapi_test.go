package toolregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/spapi-core/pkg/session"
	"github.com/Mindburn-Labs/spapi-core/pkg/spapi"
)

func TestBuildForCoreRegistersRequiredSurface(t *testing.T) {
	core := &spapi.Core{Sessions: session.NewGate()}
	r := BuildForCore(core)

	required := []string{
		"authenticate", "listOrders", "getOrder", "getOrderItems",
		"inventoryInStock", "getListing", "updateListing", "updatePrice",
		"updateFbmInventory", "bulkUpdateFbmInventory", "submitFeed",
		"feedStatus", "requestReport", "getReport", "listFilters",
		"getOrderBuyerInfo", "getOrderItemsBuyerInfo",
	}
	for _, name := range required {
		_, ok := r.Get(name)
		assert.True(t, ok, "expected tool %q to be registered", name)
	}
	assert.Len(t, r.Names(), len(required))
}

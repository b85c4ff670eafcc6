package spapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/session"
)

func TestGetOrderBuyerInfoCarriesPIIWarning(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{"payload":{"buyerEmail":"a@example.com"}}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.GetOrderBuyerInfo(context.Background(), map[string]any{"token": token, "orderId": "1"})
	require.True(t, env.Success)
	warning, ok := env.Meta.Extra["piiWarning"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, warning)
}

func TestGetOrderItemsBuyerInfoCarriesPIIWarning(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{"payload":{"OrderItems":[{"buyerEmail":"a@example.com"}]}}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.GetOrderItemsBuyerInfo(context.Background(), map[string]any{"token": token, "orderId": "1"})
	require.True(t, env.Success)
	_, ok := env.Meta.Extra["piiWarning"]
	assert.True(t, ok)
}

func TestGetOrderBuyerInfoRequiresOrderID(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}
	env := core.GetOrderBuyerInfo(context.Background(), map[string]any{"token": token})
	assert.False(t, env.Success)
}

package spapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/session"
)

func TestUpdateListingRejectsTooManyBulletPoints(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	bp := []any{"a", "b", "c", "d", "e", "f"}
	env := core.UpdateListing(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1", "bulletPoints": bp,
	})
	assert.False(t, env.Success)
	assert.Equal(t, "InvalidInput", string(env.ErrorKind))
}

func TestUpdateListingRejectsTooManySearchTerms(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	st := []any{"a", "b", "c", "d", "e", "f"}
	env := core.UpdateListing(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1", "searchTerms": st,
	})
	assert.False(t, env.Success)
}

func TestUpdateListingRejectsForbiddenSKU(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	env := core.UpdateListing(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "bad|sku", "title": "New Title",
	})
	assert.False(t, env.Success)
}

func TestUpdateListingRejectsNoUpdatableFields(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	env := core.UpdateListing(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1",
	})
	assert.False(t, env.Success)
}

func TestUpdateListingSendsPatchForSuppliedFields(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.UpdateListing(context.Background(), map[string]any{
		"token": token, "sellerId": "S1", "sku": "sku1", "title": "New Title",
	})
	require.True(t, env.Success)

	var doc patchDocument
	require.NoError(t, json.Unmarshal(transport.lastBody, &doc))
	require.Len(t, doc.Patches, 1)
	assert.Equal(t, "/attributes/item_name", doc.Patches[0].Path)

	changed, ok := env.Meta.Extra["listingUpdate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"title"}, changed["fieldsChanged"])
}

func TestGetListingRequiresSellerIDAndSKU(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}

	env := core.GetListing(context.Background(), map[string]any{"token": token, "sellerId": "S1"})
	assert.False(t, env.Success)
}

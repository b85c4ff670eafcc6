package spapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
)

const defaultCurrency = "GBP"

type priceValue struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// UpdatePrice implements the updatePrice tool: a PATCH listings item with
// a single replace op on the price attribute.
func (c *Core) UpdatePrice(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("updatePrice", nil, baseMetadata(""), err)
	}
	sellerID, err := requireString(params, "sellerId")
	if err != nil {
		return toEnvelope("updatePrice", nil, baseMetadata(""), err)
	}
	sku, err := requireString(params, "sku")
	if err != nil {
		return toEnvelope("updatePrice", nil, baseMetadata(""), err)
	}
	if err := validateSKU(sku); err != nil {
		return toEnvelope("updatePrice", nil, baseMetadata(""), err)
	}
	newPrice, err := requireString(params, "newPrice")
	if err != nil {
		return toEnvelope("updatePrice", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("updatePrice", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)
	currency := optionalString(params, "currency", defaultCurrency)

	body, err := json.Marshal(patchDocument{
		Patches: []patchOp{
			{Op: "replace", Path: "/attributes/purchasable_offer", Value: []map[string]any{
				{"our_price": []map[string]any{{"schedule": []map[string]any{{"value_with_tax": priceValue{Amount: newPrice, Currency: currency}}}}}},
			}},
		},
	})
	if err != nil {
		return toEnvelope("updatePrice", nil, meta, err)
	}

	q := url.Values{}
	q.Set("marketplaceIds", ids[0])
	rc := dispatcher.RequestContext{
		OperationName: "updatePrice",
		Method:        http.MethodPatch,
		PathTemplate:  listingsPathTemplate,
		Path:          listingsPath(sellerID, sku),
		Query:         q,
		Body:          body,
		MarketplaceID: mp.ID,
		Region:        mp.Region,
		EndpointHost:  mp.EndpointHost,
		RetryBudget:   3,
		Deadline:      time.Now().Add(time.Minute),
	}
	res, dispErr := c.dispatch(ctx, rc)
	if dispErr != nil {
		return *dispErr
	}
	var decoded any
	_ = dispatcher.DecodeJSON(res.Body, &decoded)

	meta = meta.WithExtra(map[string]any{
		"listingUpdate": map[string]any{
			"fieldsChanged":            []string{"price"},
			"typicalPropagationDelay": "up to 15 minutes",
		},
	})
	return toEnvelope("updatePrice", decoded, meta, nil)
}

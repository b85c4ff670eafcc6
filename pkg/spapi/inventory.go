package spapi

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
)

const inventoryPathTemplate = "/fba/inventory/v1/summaries"
const listingsPathTemplate = "/listings/2021-08-01/items/{sellerId}/{sku}"

type inventoryResponse struct {
	Payload struct {
		InventorySummaries []map[string]any `json:"inventorySummaries"`
	} `json:"payload"`
}

// InventoryInStock implements the inventoryInStock tool. FBA and ALL use
// the inventory summaries endpoint. FBM makes no upstream call at all:
// it returns an empty record list (after the filter family is applied)
// with a warning in the metadata; no listings data is fetched for it.
func (c *Core) InventoryInStock(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("inventoryInStock", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("inventoryInStock", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)
	fulfillmentType := optionalString(params, "fulfillmentType", "ALL")

	if fulfillmentType == "FBM" {
		meta = meta.WithExtra(map[string]any{
			"warning": "FBM inventory is a best-effort view; no FBM inventory data is fetched, so the result is empty",
		})
		data, meta, filterErr := c.applyFilterFamily("inventoryInStock", []any{}, params, meta)
		if filterErr != nil {
			return toEnvelope("inventoryInStock", nil, meta, filterErr)
		}
		return toEnvelope("inventoryInStock", data, meta, nil)
	}

	q := url.Values{}
	q.Set("granularityType", "Marketplace")
	q.Set("granularityId", mp.ID)
	q.Set("marketplaceIds", ids[0])
	if truthyParam(params["details"]) {
		q.Set("details", "true")
	}

	rc := dispatcher.RequestContext{
		OperationName: "inventoryInStock",
		Method:        http.MethodGet,
		PathTemplate:  inventoryPathTemplate,
		Path:          inventoryPathTemplate,
		Query:         q,
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
	var decoded inventoryResponse
	if err := dispatcher.DecodeJSON(res.Body, &decoded); err != nil {
		return toEnvelope("inventoryInStock", nil, meta, err)
	}

	inStock := filterInStock(decoded.Payload.InventorySummaries)
	sortByTotalQuantityDesc(inStock)

	maxResults, _ := optionalFloat(params, "maxResults", 100)
	if n := int(maxResults); n > 0 && len(inStock) > n {
		inStock = inStock[:n]
	}

	records := make([]any, len(inStock))
	for i, r := range inStock {
		records[i] = r
	}

	data, meta, filterErr := c.applyFilterFamily("inventoryInStock", records, params, meta)
	if filterErr != nil {
		return toEnvelope("inventoryInStock", nil, meta, filterErr)
	}
	return toEnvelope("inventoryInStock", data, meta, nil)
}

func filterInStock(summaries []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(summaries))
	for _, s := range summaries {
		if totalFulfillableQuantity(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func totalFulfillableQuantity(s map[string]any) float64 {
	details, ok := s["inventoryDetails"].(map[string]any)
	if !ok {
		if v, ok := s["totalQuantity"].(float64); ok {
			return v
		}
		return 0
	}
	fulfillable, ok := details["fulfillableQuantity"].(map[string]any)
	if !ok {
		return 0
	}
	v, _ := fulfillable["totalQuantity"].(float64)
	return v
}

func sortByTotalQuantityDesc(summaries []map[string]any) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return totalFulfillableQuantity(summaries[i]) > totalFulfillableQuantity(summaries[j])
	})
}

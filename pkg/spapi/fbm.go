package spapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
)

type fulfillmentAvailability struct {
	Quantity     int    `json:"quantity"`
	HandlingTime int    `json:"handlingTime,omitempty"`
	RestockDate  string `json:"restockDate,omitempty"`
}

// UpdateFbmInventory implements the updateFbmInventory tool.
func (c *Core) UpdateFbmInventory(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("updateFbmInventory", nil, baseMetadata(""), err)
	}
	sellerID, err := requireString(params, "sellerId")
	if err != nil {
		return toEnvelope("updateFbmInventory", nil, baseMetadata(""), err)
	}
	sku, err := requireString(params, "sku")
	if err != nil {
		return toEnvelope("updateFbmInventory", nil, baseMetadata(""), err)
	}
	if err := validateSKU(sku); err != nil {
		return toEnvelope("updateFbmInventory", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("updateFbmInventory", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)

	avail, err := buildFulfillmentAvailability(params, c.now())
	if err != nil {
		return toEnvelope("updateFbmInventory", nil, meta, err)
	}

	body, err := json.Marshal(patchDocument{
		Patches: []patchOp{{Op: "replace", Path: "/attributes/fulfillment_availability", Value: []fulfillmentAvailability{avail}}},
	})
	if err != nil {
		return toEnvelope("updateFbmInventory", nil, meta, err)
	}

	q := url.Values{}
	q.Set("marketplaceIds", ids[0])
	rc := dispatcher.RequestContext{
		OperationName: "updateFbmInventory",
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
	return toEnvelope("updateFbmInventory", decoded, meta, nil)
}

// buildFulfillmentAvailability validates quantity/handlingTime/restockDate
// and returns the patch value, or an InvalidInputError on the first
// violation.
func buildFulfillmentAvailability(params map[string]any, now time.Time) (fulfillmentAvailability, error) {
	qty, err := requireFloat(params, "quantity")
	if err != nil {
		return fulfillmentAvailability{}, err
	}
	if qty < 0 || qty != float64(int(qty)) {
		return fulfillmentAvailability{}, invalidf("quantity must be a non-negative integer, got %v", qty)
	}
	avail := fulfillmentAvailability{Quantity: int(qty)}

	if _, ok := params["handlingTime"]; ok {
		ht, err := requireFloat(params, "handlingTime")
		if err != nil {
			return fulfillmentAvailability{}, err
		}
		if err := validateHandlingTime(ht); err != nil {
			return fulfillmentAvailability{}, err
		}
		avail.HandlingTime = int(ht)
	}
	if v, ok := params["restockDate"].(string); ok && v != "" {
		if err := validateRestockDate(v, now); err != nil {
			return fulfillmentAvailability{}, err
		}
		avail.RestockDate = v
	}
	return avail, nil
}

// BulkUpdateFbmInventory implements the bulkUpdateFbmInventory tool: every
// entry of updatesJsonArray is validated before any network call, and
// every offending entry contributes its own message.
func (c *Core) BulkUpdateFbmInventory(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("bulkUpdateFbmInventory", nil, baseMetadata(""), err)
	}
	updatesRaw, ok := params["updatesJsonArray"].([]any)
	if !ok {
		return toEnvelope("bulkUpdateFbmInventory", nil, baseMetadata(""), invalidf("updatesJsonArray must be an array"))
	}
	if len(updatesRaw) > MaxBulkUpdateSize {
		return toEnvelope("bulkUpdateFbmInventory", nil, baseMetadata(""), invalidf("updatesJsonArray exceeds maximum of %d entries", MaxBulkUpdateSize))
	}

	var mpIDs []string
	if v := optionalString(params, "marketplaceId", ""); v != "" {
		mpIDs = []string{v}
	}
	mp := resolveMarketplace(mpIDs)
	meta := baseMetadata(mp.ID)
	now := c.now()

	type validated struct {
		sellerID string
		sku      string
		avail    fulfillmentAvailability
	}
	var entries []validated
	var problems []string

	for i, raw := range updatesRaw {
		entry, ok := raw.(map[string]any)
		if !ok {
			problems = append(problems, fmt.Sprintf("entry %d: must be an object", i))
			continue
		}
		sku, _ := entry["sku"].(string)
		if err := validateSKU(sku); err != nil {
			problems = append(problems, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		sellerID, _ := entry["sellerId"].(string)
		if sellerID == "" {
			problems = append(problems, fmt.Sprintf("entry %d: missing sellerId", i))
			continue
		}
		avail, err := buildFulfillmentAvailability(entry, now)
		if err != nil {
			problems = append(problems, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		entries = append(entries, validated{sellerID: sellerID, sku: sku, avail: avail})
	}

	if len(problems) > 0 {
		return toEnvelope("bulkUpdateFbmInventory", nil, meta, invalidf("invalid entries: %v", problems))
	}

	results := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		body, err := json.Marshal(patchDocument{
			Patches: []patchOp{{Op: "replace", Path: "/attributes/fulfillment_availability", Value: []fulfillmentAvailability{e.avail}}},
		})
		if err != nil {
			return toEnvelope("bulkUpdateFbmInventory", nil, meta, err)
		}
		q := url.Values{}
		q.Set("marketplaceIds", mp.ID)
		rc := dispatcher.RequestContext{
			OperationName: "bulkUpdateFbmInventory",
			Method:        http.MethodPatch,
			PathTemplate:  listingsPathTemplate,
			Path:          listingsPath(e.sellerID, e.sku),
			Query:         q,
			Body:          body,
			MarketplaceID: mp.ID,
			Region:        mp.Region,
			EndpointHost:  mp.EndpointHost,
			RetryBudget:   3,
			Deadline:      now.Add(time.Minute),
		}
		res, dispErr := c.dispatch(ctx, rc)
		if dispErr != nil {
			results = append(results, map[string]any{"sku": e.sku, "success": false, "error": dispErr.Message})
			continue
		}
		var decoded any
		_ = dispatcher.DecodeJSON(res.Body, &decoded)
		results = append(results, map[string]any{"sku": e.sku, "success": true, "result": decoded})
	}

	data := make([]any, len(results))
	for i, r := range results {
		data[i] = r
	}
	return toEnvelope("bulkUpdateFbmInventory", data, meta, nil)
}

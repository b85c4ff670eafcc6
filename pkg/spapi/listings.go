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

// patchOp is one JSON-patch-style operation in a listings PATCH body.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type patchDocument struct {
	ProductType string    `json:"productType,omitempty"`
	Patches     []patchOp `json:"patches"`
}

func listingsPath(sellerID, sku string) string {
	return "/listings/2021-08-01/items/" + sellerID + "/" + sku
}

// GetListing implements the getListing tool.
func (c *Core) GetListing(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("getListing", nil, baseMetadata(""), err)
	}
	sellerID, err := requireString(params, "sellerId")
	if err != nil {
		return toEnvelope("getListing", nil, baseMetadata(""), err)
	}
	sku, err := requireString(params, "sku")
	if err != nil {
		return toEnvelope("getListing", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("getListing", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)

	q := url.Values{}
	q.Set("marketplaceIds", ids[0])
	if included := optionalStringSlice(params, "includedData"); len(included) > 0 {
		for _, v := range included {
			q.Add("includedData", v)
		}
	} else {
		q.Set("includedData", "summaries")
	}

	rc := dispatcher.RequestContext{
		OperationName: "getListing",
		Method:        http.MethodGet,
		PathTemplate:  listingsPathTemplate,
		Path:          listingsPath(sellerID, sku),
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
	var decoded any
	if err := dispatcher.DecodeJSON(res.Body, &decoded); err != nil {
		return toEnvelope("getListing", nil, meta, err)
	}

	data, meta, filterErr := c.applyFilterFamily("getListing", decoded, params, meta)
	if filterErr != nil {
		return toEnvelope("getListing", nil, meta, filterErr)
	}
	return toEnvelope("getListing", data, meta, nil)
}

// UpdateListing implements the updateListing tool: only supplied fields
// produce patch ops; bulletPoints and searchTerms are capped at 5.
func (c *Core) UpdateListing(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("updateListing", nil, baseMetadata(""), err)
	}
	sellerID, err := requireString(params, "sellerId")
	if err != nil {
		return toEnvelope("updateListing", nil, baseMetadata(""), err)
	}
	sku, err := requireString(params, "sku")
	if err != nil {
		return toEnvelope("updateListing", nil, baseMetadata(""), err)
	}
	if err := validateSKU(sku); err != nil {
		return toEnvelope("updateListing", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("updateListing", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)

	if bp := optionalStringSlice(params, "bulletPoints"); len(bp) > 5 {
		return toEnvelope("updateListing", nil, meta, invalidf("bulletPoints must not exceed 5 entries, got %d", len(bp)))
	}
	if st := optionalStringSlice(params, "searchTerms"); len(st) > 5 {
		return toEnvelope("updateListing", nil, meta, invalidf("searchTerms must not exceed 5 entries, got %d", len(st)))
	}

	var patches []patchOp
	changed := make([]string, 0, 6)
	addStringPatch := func(field, path string) {
		if v := optionalString(params, field, ""); v != "" {
			patches = append(patches, patchOp{Op: "replace", Path: path, Value: v})
			changed = append(changed, field)
		}
	}
	addStringPatch("title", "/attributes/item_name")
	addStringPatch("description", "/attributes/product_description")
	addStringPatch("brand", "/attributes/brand")
	addStringPatch("manufacturer", "/attributes/manufacturer")
	if bp := optionalStringSlice(params, "bulletPoints"); len(bp) > 0 {
		patches = append(patches, patchOp{Op: "replace", Path: "/attributes/bullet_point", Value: bp})
		changed = append(changed, "bulletPoints")
	}
	if st := optionalStringSlice(params, "searchTerms"); len(st) > 0 {
		patches = append(patches, patchOp{Op: "replace", Path: "/attributes/generic_keyword", Value: st})
		changed = append(changed, "searchTerms")
	}

	if len(patches) == 0 {
		return toEnvelope("updateListing", nil, meta, invalidf("no updatable fields supplied"))
	}

	body, err := json.Marshal(patchDocument{Patches: patches})
	if err != nil {
		return toEnvelope("updateListing", nil, meta, err)
	}

	q := url.Values{}
	q.Set("marketplaceIds", ids[0])
	rc := dispatcher.RequestContext{
		OperationName: "updateListing",
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
			"fieldsChanged":            changed,
			"typicalPropagationDelay": "up to 15 minutes",
		},
	})
	return toEnvelope("updateListing", decoded, meta, nil)
}

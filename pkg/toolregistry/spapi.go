package toolregistry

import (
	"github.com/Mindburn-Labs/spapi-core/pkg/spapi"
)

// schema builds a minimal JSON-schema-shaped parameter description: a
// flat object with the given required and optional string-keyed
// properties. Property types are left untyped ("true") since the
// adapters themselves perform the real validation.
func schema(required, optional []string) map[string]any {
	props := map[string]any{}
	for _, name := range required {
		props[name] = true
	}
	for _, name := range optional {
		props[name] = true
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var filterFamilyParams = []string{"filterId", "filterChain", "customFilter", "filterParams", "reduceResponse"}

// BuildForCore registers every required and supplemental tool against
// core, returning a Registry ready to drive from an external transport.
func BuildForCore(core *spapi.Core) *Registry {
	r := New()

	register := func(name, desc string, required, optional []string, h Handler) {
		_ = r.Register(Tool{Name: name, Description: desc, ParameterSchema: schema(required, optional), Handler: h})
	}

	register("authenticate", "Mint a new session token.", nil, nil, core.Authenticate)

	register("listOrders", "List orders in a date/status range.",
		[]string{"token"},
		append([]string{"marketplaceIds", "createdAfter", "createdBefore", "statuses", "maxResults"}, filterFamilyParams...),
		core.ListOrders)

	register("getOrder", "Fetch a single order by id.",
		[]string{"token", "orderId"}, nil, core.GetOrder)

	register("getOrderItems", "Fetch the line items of an order.",
		[]string{"token", "orderId"}, filterFamilyParams, core.GetOrderItems)

	register("getOrderBuyerInfo", "Fetch buyer info for an order (PII).",
		[]string{"token", "orderId"}, nil, core.GetOrderBuyerInfo)

	register("getOrderItemsBuyerInfo", "Fetch buyer info for an order's line items (PII).",
		[]string{"token", "orderId"}, nil, core.GetOrderItemsBuyerInfo)

	register("inventoryInStock", "List in-stock inventory summaries.",
		[]string{"token"},
		append([]string{"marketplaceIds", "fulfillmentType", "details", "maxResults"}, filterFamilyParams...),
		core.InventoryInStock)

	register("getListing", "Fetch a listing item.",
		[]string{"token", "sellerId", "sku"}, []string{"marketplaceIds", "includedData"}, core.GetListing)

	register("updateListing", "Partially update a listing item's content attributes.",
		[]string{"token", "sellerId", "sku"},
		[]string{"title", "bulletPoints", "description", "searchTerms", "brand", "manufacturer", "marketplaceIds"},
		core.UpdateListing)

	register("updatePrice", "Update a listing item's price.",
		[]string{"token", "sellerId", "sku", "newPrice"}, []string{"currency", "marketplaceIds"}, core.UpdatePrice)

	register("updateFbmInventory", "Update merchant-fulfilled inventory quantity.",
		[]string{"token", "sellerId", "sku", "quantity"}, []string{"handlingTime", "restockDate"}, core.UpdateFbmInventory)

	register("bulkUpdateFbmInventory", "Bulk update merchant-fulfilled inventory.",
		[]string{"token", "updatesJsonArray"}, []string{"marketplaceId"}, core.BulkUpdateFbmInventory)

	register("submitFeed", "Submit a feed document.",
		[]string{"token", "feedType", "content"}, []string{"marketplaceIds"}, core.SubmitFeed)

	register("feedStatus", "Check the status of a submitted feed.",
		[]string{"token", "feedId"}, nil, core.FeedStatus)

	register("requestReport", "Request a report be generated.",
		[]string{"token", "reportType"}, []string{"marketplaceIds", "startDate", "endDate"}, core.RequestReport)

	register("getReport", "Fetch a generated report.",
		[]string{"token", "reportId"}, nil, core.GetReport)

	register("listFilters", "Search the filter catalog.",
		[]string{"token"}, []string{"endpoint", "category", "kind", "searchTerm"}, core.ListFilters)

	return r
}

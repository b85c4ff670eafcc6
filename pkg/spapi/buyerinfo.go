package spapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
)

// GetOrderBuyerInfo implements the getOrderBuyerInfo tool. Buyer info
// carries personally identifiable data, so every response is annotated
// with a piiWarning in its metadata regardless of filtering applied.
func (c *Core) GetOrderBuyerInfo(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("getOrderBuyerInfo", nil, baseMetadata(""), err)
	}
	orderID, err := requireString(params, "orderId")
	if err != nil {
		return toEnvelope("getOrderBuyerInfo", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(nil)
	meta := withPIIWarning(baseMetadata(mp.ID))

	rc := dispatcher.RequestContext{
		OperationName: "getOrderBuyerInfo",
		Method:        http.MethodGet,
		PathTemplate:  ordersPathTemplate + "/{id}/buyerInfo",
		Path:          ordersPathTemplate + "/" + orderID + "/buyerInfo",
		Query:         url.Values{},
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
	var decoded struct {
		Payload any `json:"payload"`
	}
	if err := dispatcher.DecodeJSON(res.Body, &decoded); err != nil {
		return toEnvelope("getOrderBuyerInfo", nil, meta, err)
	}

	data, meta, filterErr := c.applyFilterFamily("getOrderBuyerInfo", decoded.Payload, params, meta)
	if filterErr != nil {
		return toEnvelope("getOrderBuyerInfo", nil, meta, filterErr)
	}
	return toEnvelope("getOrderBuyerInfo", data, meta, nil)
}

// GetOrderItemsBuyerInfo implements the getOrderItemsBuyerInfo tool.
func (c *Core) GetOrderItemsBuyerInfo(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("getOrderItemsBuyerInfo", nil, baseMetadata(""), err)
	}
	orderID, err := requireString(params, "orderId")
	if err != nil {
		return toEnvelope("getOrderItemsBuyerInfo", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(nil)
	meta := withPIIWarning(baseMetadata(mp.ID))

	rc := dispatcher.RequestContext{
		OperationName: "getOrderItemsBuyerInfo",
		Method:        http.MethodGet,
		PathTemplate:  orderItemsPathTemplate + "/buyerInfo",
		Path:          ordersPathTemplate + "/" + orderID + "/orderItems/buyerInfo",
		Query:         url.Values{},
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
	var decoded struct {
		Payload struct {
			OrderItems []any `json:"OrderItems"`
		} `json:"payload"`
	}
	if err := dispatcher.DecodeJSON(res.Body, &decoded); err != nil {
		return toEnvelope("getOrderItemsBuyerInfo", nil, meta, err)
	}

	data, meta, filterErr := c.applyFilterFamily("getOrderItemsBuyerInfo", decoded.Payload.OrderItems, params, meta)
	if filterErr != nil {
		return toEnvelope("getOrderItemsBuyerInfo", nil, meta, filterErr)
	}
	return toEnvelope("getOrderItemsBuyerInfo", data, meta, nil)
}

func withPIIWarning(meta envelope.Metadata) envelope.Metadata {
	return meta.WithExtra(map[string]any{
		"piiWarning": "response may contain personally identifiable buyer information",
	})
}

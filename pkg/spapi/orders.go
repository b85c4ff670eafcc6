package spapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
	"github.com/Mindburn-Labs/spapi-core/pkg/pagination"
)

const ordersPathTemplate = "/orders/v0/orders"
const orderItemsPathTemplate = "/orders/v0/orders/{id}/orderItems"

// ordersPage is the shape of one page of the orders list response.
type ordersPage struct {
	Payload struct {
		Orders            []any  `json:"Orders"`
		NextToken         string `json:"NextToken"`
		AmazonOrderIdList []any  `json:"OrderItems"`
	} `json:"payload"`
}

// ListOrders implements the listOrders tool.
func (c *Core) ListOrders(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("listOrders", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("listOrders", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)

	maxResults, _ := optionalFloat(params, "maxResults", float64(pagination.DefaultCap))
	deadline := time.Now().Add(time.Minute)

	mkRC := func(nextToken string) dispatcher.RequestContext {
		q := url.Values{}
		q.Set("MarketplaceIds", ids[0])
		if v := optionalString(params, "createdAfter", ""); v != "" {
			q.Set("CreatedAfter", v)
		}
		if v := optionalString(params, "createdBefore", ""); v != "" {
			q.Set("CreatedBefore", v)
		}
		for _, s := range optionalStringSlice(params, "statuses") {
			q.Add("OrderStatuses", s)
		}
		if nextToken != "" {
			q.Set("NextToken", nextToken)
		}
		return dispatcher.RequestContext{
			OperationName: "listOrders",
			Method:        http.MethodGet,
			PathTemplate:  ordersPathTemplate,
			Path:          ordersPathTemplate,
			Query:         q,
			MarketplaceID: mp.ID,
			Region:        mp.Region,
			EndpointHost:  mp.EndpointHost,
			RetryBudget:   3,
			Deadline:      deadline,
		}
	}

	result, dispErr := runPaginated(ctx, c, mkRC, decodeOrdersPage, int(maxResults), deadline)
	if dispErr != nil {
		return toEnvelope("listOrders", nil, meta, dispErr)
	}

	data, meta, filterErr := c.applyFilterFamily("listOrders", result.Records, params, meta)
	if filterErr != nil {
		return toEnvelope("listOrders", nil, meta, filterErr)
	}
	return toEnvelope("listOrders", data, meta, nil)
}

func decodeOrdersPage(body []byte) (pagination.Page, error) {
	var page ordersPage
	if err := dispatcher.DecodeJSON(body, &page); err != nil {
		return pagination.Page{}, err
	}
	return pagination.Page{Records: page.Payload.Orders, NextToken: page.Payload.NextToken}, nil
}

// GetOrder implements the getOrder tool.
func (c *Core) GetOrder(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("getOrder", nil, baseMetadata(""), err)
	}
	orderID, err := requireString(params, "orderId")
	if err != nil {
		return toEnvelope("getOrder", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(nil)
	meta := baseMetadata(mp.ID)

	rc := dispatcher.RequestContext{
		OperationName: "getOrder",
		Method:        http.MethodGet,
		PathTemplate:  ordersPathTemplate + "/{id}",
		Path:          ordersPathTemplate + "/" + orderID,
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
		return toEnvelope("getOrder", nil, meta, err)
	}

	data, meta, filterErr := c.applyFilterFamily("getOrder", decoded.Payload, params, meta)
	if filterErr != nil {
		return toEnvelope("getOrder", nil, meta, filterErr)
	}
	return toEnvelope("getOrder", data, meta, nil)
}

type orderItemsPage struct {
	Payload struct {
		OrderItems []any  `json:"OrderItems"`
		NextToken  string `json:"NextToken"`
	} `json:"payload"`
}

// GetOrderItems implements the getOrderItems tool.
func (c *Core) GetOrderItems(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("getOrderItems", nil, baseMetadata(""), err)
	}
	orderID, err := requireString(params, "orderId")
	if err != nil {
		return toEnvelope("getOrderItems", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(nil)
	meta := baseMetadata(mp.ID)
	deadline := time.Now().Add(time.Minute)

	mkRC := func(nextToken string) dispatcher.RequestContext {
		q := url.Values{}
		if nextToken != "" {
			q.Set("NextToken", nextToken)
		}
		return dispatcher.RequestContext{
			OperationName: "getOrderItems",
			Method:        http.MethodGet,
			PathTemplate:  orderItemsPathTemplate,
			Path:          ordersPathTemplate + "/" + orderID + "/orderItems",
			Query:         q,
			MarketplaceID: mp.ID,
			Region:        mp.Region,
			EndpointHost:  mp.EndpointHost,
			RetryBudget:   3,
			Deadline:      deadline,
		}
	}
	decodeItemsPage := func(body []byte) (pagination.Page, error) {
		var page orderItemsPage
		if err := dispatcher.DecodeJSON(body, &page); err != nil {
			return pagination.Page{}, err
		}
		return pagination.Page{Records: page.Payload.OrderItems, NextToken: page.Payload.NextToken}, nil
	}

	maxResults, _ := optionalFloat(params, "maxResults", float64(pagination.DefaultCap))
	result, dispErr := runPaginated(ctx, c, mkRC, decodeItemsPage, int(maxResults), deadline)
	if dispErr != nil {
		return toEnvelope("getOrderItems", nil, meta, dispErr)
	}

	data, meta, filterErr := c.applyFilterFamily("getOrderItems", result.Records, params, meta)
	if filterErr != nil {
		return toEnvelope("getOrderItems", nil, meta, filterErr)
	}
	return toEnvelope("getOrderItems", data, meta, nil)
}

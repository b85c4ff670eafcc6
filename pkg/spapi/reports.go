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

const reportsPathTemplate = "/reports/2021-06-30/reports"

// RequestReport implements the requestReport tool.
func (c *Core) RequestReport(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("requestReport", nil, baseMetadata(""), err)
	}
	reportType, err := requireString(params, "reportType")
	if err != nil {
		return toEnvelope("requestReport", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("requestReport", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)

	body := map[string]any{
		"reportType":     reportType,
		"marketplaceIds": ids,
	}
	if v := optionalString(params, "startDate", ""); v != "" {
		body["dataStartTime"] = v
	}
	if v := optionalString(params, "endDate", ""); v != "" {
		body["dataEndTime"] = v
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return toEnvelope("requestReport", nil, meta, err)
	}

	rc := dispatcher.RequestContext{
		OperationName: "requestReport",
		Method:        http.MethodPost,
		PathTemplate:  reportsPathTemplate,
		Path:          reportsPathTemplate,
		Query:         url.Values{},
		Body:          encoded,
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
		ReportID string `json:"reportId"`
	}
	if err := dispatcher.DecodeJSON(res.Body, &decoded); err != nil {
		return toEnvelope("requestReport", nil, meta, err)
	}
	meta = meta.WithExtra(map[string]any{"retentionDays": ReportRetentionDays})
	return toEnvelope("requestReport", map[string]any{"reportId": decoded.ReportID}, meta, nil)
}

// GetReport implements the getReport tool: a GET on the report resource,
// returning its decoded JSON (status and reportDocumentId, when present)
// as is. The report document itself is not fetched.
func (c *Core) GetReport(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("getReport", nil, baseMetadata(""), err)
	}
	reportID, err := requireString(params, "reportId")
	if err != nil {
		return toEnvelope("getReport", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(nil)
	meta := baseMetadata(mp.ID)

	rc := dispatcher.RequestContext{
		OperationName: "getReport",
		Method:        http.MethodGet,
		PathTemplate:  reportsPathTemplate + "/{reportId}",
		Path:          reportsPathTemplate + "/" + reportID,
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
	var decoded any
	if err := dispatcher.DecodeJSON(res.Body, &decoded); err != nil {
		return toEnvelope("getReport", nil, meta, err)
	}
	return toEnvelope("getReport", decoded, meta, nil)
}

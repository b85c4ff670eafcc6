package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
)

const feedsPathTemplate = "/feeds/2021-06-30/feeds"
const feedDocumentsPathTemplate = "/feeds/2021-06-30/documents"

type feedDocumentSpec struct {
	FeedDocumentID string `json:"feedDocumentId"`
	URL            string `json:"url"`
}

// SubmitFeed implements the submitFeed tool: create a feed document,
// upload the raw content to the returned URL, then create the feed
// referencing the uploaded document.
func (c *Core) SubmitFeed(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("submitFeed", nil, baseMetadata(""), err)
	}
	feedType, err := requireString(params, "feedType")
	if err != nil {
		return toEnvelope("submitFeed", nil, baseMetadata(""), err)
	}
	content, err := requireString(params, "content")
	if err != nil {
		return toEnvelope("submitFeed", nil, baseMetadata(""), err)
	}
	ids, err := validateMarketplaces(params)
	if err != nil {
		return toEnvelope("submitFeed", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(ids)
	meta := baseMetadata(mp.ID)
	deadline := time.Now().Add(2 * time.Minute)

	createDocBody, _ := json.Marshal(map[string]string{"contentType": "text/tab-separated-values; charset=UTF-8"})
	docRC := dispatcher.RequestContext{
		OperationName: "submitFeed.createFeedDocument",
		Method:        http.MethodPost,
		PathTemplate:  feedDocumentsPathTemplate,
		Path:          feedDocumentsPathTemplate,
		Query:         url.Values{},
		Body:          createDocBody,
		MarketplaceID: mp.ID,
		Region:        mp.Region,
		EndpointHost:  mp.EndpointHost,
		RetryBudget:   3,
		Deadline:      deadline,
	}
	docRes, dispErr := c.dispatch(ctx, docRC)
	if dispErr != nil {
		return *dispErr
	}
	var doc feedDocumentSpec
	if err := dispatcher.DecodeJSON(docRes.Body, &doc); err != nil {
		return toEnvelope("submitFeed", nil, meta, err)
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPut, doc.URL, bytes.NewReader([]byte(content)))
	if err != nil {
		return toEnvelope("submitFeed", nil, meta, err)
	}
	uploadReq.Header.Set("content-type", "text/tab-separated-values; charset=UTF-8")
	uploadResp, err := c.Dispatcher.Transport.Do(uploadReq)
	if err != nil {
		return toEnvelope("submitFeed", nil, meta, err)
	}
	if uploadResp.Body != nil {
		_ = uploadResp.Body.Close()
	}

	createFeedBody, err := json.Marshal(map[string]any{
		"feedType":         feedType,
		"marketplaceIds":   ids,
		"inputFeedDocumentId": doc.FeedDocumentID,
	})
	if err != nil {
		return toEnvelope("submitFeed", nil, meta, err)
	}
	feedRC := dispatcher.RequestContext{
		OperationName: "submitFeed.createFeed",
		Method:        http.MethodPost,
		PathTemplate:  feedsPathTemplate,
		Path:          feedsPathTemplate,
		Query:         url.Values{},
		Body:          createFeedBody,
		MarketplaceID: mp.ID,
		Region:        mp.Region,
		EndpointHost:  mp.EndpointHost,
		RetryBudget:   3,
		Deadline:      deadline,
	}
	feedRes, dispErr := c.dispatch(ctx, feedRC)
	if dispErr != nil {
		return *dispErr
	}
	var feedResult struct {
		FeedID string `json:"feedId"`
	}
	if err := dispatcher.DecodeJSON(feedRes.Body, &feedResult); err != nil {
		return toEnvelope("submitFeed", nil, meta, err)
	}
	return toEnvelope("submitFeed", map[string]any{"feedId": feedResult.FeedID}, meta, nil)
}

// FeedStatus implements the feedStatus tool.
func (c *Core) FeedStatus(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("feedStatus", nil, baseMetadata(""), err)
	}
	feedID, err := requireString(params, "feedId")
	if err != nil {
		return toEnvelope("feedStatus", nil, baseMetadata(""), err)
	}
	mp := resolveMarketplace(nil)
	meta := baseMetadata(mp.ID)

	rc := dispatcher.RequestContext{
		OperationName: "feedStatus",
		Method:        http.MethodGet,
		PathTemplate:  feedsPathTemplate + "/{feedId}",
		Path:          feedsPathTemplate + "/" + feedID,
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
		return toEnvelope("feedStatus", nil, meta, err)
	}
	return toEnvelope("feedStatus", decoded, meta, nil)
}

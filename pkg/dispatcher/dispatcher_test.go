package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
	"github.com/Mindburn-Labs/spapi-core/pkg/credentials"
	"github.com/Mindburn-Labs/spapi-core/pkg/errkind"
	"github.com/Mindburn-Labs/spapi-core/pkg/ratelimit"
)

type fakeTransport struct {
	responses []*http.Response
	requests  []*http.Request
	i         int
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	resp := f.responses[f.i]
	if f.i < len(f.responses)-1 {
		f.i++
	}
	return resp, nil
}

func jsonResp(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func newTestDispatcher(t *testing.T, transport Transport, fake *clock.Fake) *Dispatcher {
	t.Helper()
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "test-access-token", "expires_in": 3600})
	}))
	t.Cleanup(tokenSrv.Close)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(fake), ratelimit.DefaultEndpointLimits(), ratelimit.DefaultLimit)
	credMgr := credentials.NewManager(
		credentials.TokenEndpointConfig{Endpoint: tokenSrv.URL, RefreshToken: "rt", ClientID: "client", ClientSecret: "cs"},
		credentials.SignedCredentialConfig{AccessKeyID: "AKIA", SecretAccessKey: "secret"},
		fake,
	)
	return &Dispatcher{
		Limiter:     limiter,
		Credentials: credMgr,
		Transport:   transport,
		Clock:       fake,
		Jitter:      clock.ZeroJitter{},
		Backoff:     clock.DefaultBackoffPolicy,
		Mode:        ModeFailFast,
	}
}

func baseRC() RequestContext {
	return RequestContext{
		OperationName: "getOrder",
		Method:        http.MethodGet,
		PathTemplate:  "/orders/v0/orders/{id}",
		Path:          "/orders/v0/orders/123",
		Query:         url.Values{},
		MarketplaceID: "A1F83G8C2ARO7P",
		Region:        "eu-west-1",
		EndpointHost:  "sellingpartnerapi-eu.amazon.com",
		RetryBudget:   3,
		Deadline:      time.Now().Add(time.Minute),
	}
}

func TestDispatchSuccess(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	transport := &fakeTransport{responses: []*http.Response{jsonResp(200, `{"payload":{}}`)}}
	d := newTestDispatcher(t, transport, fake)

	res, env := d.Do(context.Background(), baseRC())
	require.Nil(t, env)
	require.NotNil(t, res)
	assert.Equal(t, 200, res.StatusCode)
	assert.NotEmpty(t, res.RequestID)
}

func TestDispatchRetriesOn503ThenSucceeds(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	transport := &fakeTransport{responses: []*http.Response{
		jsonResp(503, `{"errors":[]}`),
		jsonResp(200, `{"payload":{}}`),
	}}
	d := newTestDispatcher(t, transport, fake)

	res, env := d.Do(context.Background(), baseRC())
	require.Nil(t, env)
	require.NotNil(t, res)
	assert.Len(t, transport.requests, 2)
}

func TestDispatchTerminalOn400(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	transport := &fakeTransport{responses: []*http.Response{jsonResp(400, `{"errors":[{"message":"bad"}]}`)}}
	d := newTestDispatcher(t, transport, fake)

	res, env := d.Do(context.Background(), baseRC())
	require.Nil(t, res)
	require.NotNil(t, env)
	assert.Equal(t, errkind.UpstreamError, env.ErrorKind)
	assert.Len(t, transport.requests, 1)
}

func TestDispatchRateLimitFailFast(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	transport := &fakeTransport{responses: []*http.Response{jsonResp(200, `{}`)}}
	d := newTestDispatcher(t, transport, fake)

	rc := baseRC()
	rc.PathTemplate = "/orders/v0/orders" // capacity 20, refill 0.0167/s
	rc.Path = "/orders/v0/orders"

	for i := 0; i < 20; i++ {
		_, env := d.Do(context.Background(), rc)
		require.Nil(t, env)
	}

	_, env := d.Do(context.Background(), rc)
	require.NotNil(t, env)
	assert.Equal(t, errkind.RateLimitExceeded, env.ErrorKind)
	require.NotNil(t, env.RetryAfter)
	assert.GreaterOrEqual(t, *env.RetryAfter, 0.0)
}

func TestDispatchExhaustsRetryBudget(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	transport := &fakeTransport{responses: []*http.Response{
		jsonResp(502, `{}`), jsonResp(502, `{}`), jsonResp(502, `{}`), jsonResp(502, `{}`),
	}}
	d := newTestDispatcher(t, transport, fake)
	rc := baseRC()
	rc.RetryBudget = 3

	_, env := d.Do(context.Background(), rc)
	require.NotNil(t, env)
	assert.Equal(t, errkind.UpstreamError, env.ErrorKind)
	assert.Len(t, transport.requests, 4) // initial + 3 retries
}

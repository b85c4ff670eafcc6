package spapi

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/session"
)

func TestListOrdersRejectsUnknownMarketplaceBeforeDispatch(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.ListOrders(context.Background(), map[string]any{
		"token":          token,
		"marketplaceIds": []any{"ZZ"},
	})
	assert.False(t, env.Success)
	assert.Nil(t, transport.lastReq)
}

func TestListOrdersPaginatesAcrossPages(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()

	pages := []string{
		`{"payload":{"Orders":[{"AmazonOrderId":"1"}],"NextToken":"tok2"}}`,
		`{"payload":{"Orders":[{"AmazonOrderId":"2"}],"NextToken":""}}`,
	}
	i := 0
	transport := &sequencedTransport{
		fn: func(reqBody []byte) (int, []byte) {
			body := pages[i]
			i++
			return 200, []byte(body)
		},
	}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.ListOrders(context.Background(), map[string]any{"token": token})
	require.True(t, env.Success)
	records, ok := env.Data.([]any)
	require.True(t, ok)
	assert.Len(t, records, 2)
}

func TestGetOrderRequiresOrderID(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}
	env := core.GetOrder(context.Background(), map[string]any{"token": token})
	assert.False(t, env.Success)
}

func TestGetOrderReturnsPayload(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{"payload":{"AmazonOrderId":"1"}}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.GetOrder(context.Background(), map[string]any{"token": token, "orderId": "1"})
	require.True(t, env.Success)
	require.NotNil(t, transport.lastReq)
	assert.True(t, strings.Contains(transport.lastReq.URL.Path, "/orders/v0/orders/1"))
}

func TestGetOrderRejectsMissingSessionToken(t *testing.T) {
	core := &Core{Sessions: session.NewGate()}
	env := core.GetOrder(context.Background(), map[string]any{"orderId": "1"})
	assert.False(t, env.Success)
	assert.Equal(t, "AuthFailed", string(env.ErrorKind))
}

// sequencedTransport returns successive responses on each call, useful
// for exercising the pagination driver against a fake dispatcher.
type sequencedTransport struct {
	fn func(reqBody []byte) (int, []byte)
}

func (t *sequencedTransport) Do(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
	}
	status, body := t.fn(reqBody)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(body))),
		Header:     http.Header{},
	}, nil
}

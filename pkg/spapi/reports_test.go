package spapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/session"
)

func TestRequestReportReturnsReportIDAndRetention(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{"reportId":"r-1"}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.RequestReport(context.Background(), map[string]any{
		"token": token, "reportType": "GET_FBA_MYI_UNSUPPRESSED_INVENTORY_DATA",
	})
	require.True(t, env.Success)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "r-1", data["reportId"])
	assert.Equal(t, ReportRetentionDays, env.Meta.Extra["retentionDays"])
}

func TestRequestReportRequiresReportType(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}
	env := core.RequestReport(context.Background(), map[string]any{"token": token})
	assert.False(t, env.Success)
}

func TestGetReportRequiresReportID(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	core := &Core{Sessions: gate}
	env := core.GetReport(context.Background(), map[string]any{"token": token})
	assert.False(t, env.Success)
}

func TestGetReportReturnsDecodedPayload(t *testing.T) {
	gate := session.NewGate()
	token, _ := gate.Mint()
	transport := &recordingTransport{status: 200, respBody: []byte(`{"reportDocumentId":"doc-1","processingStatus":"DONE"}`)}
	core := &Core{Dispatcher: newTestDispatcher(t, transport), Sessions: gate}

	env := core.GetReport(context.Background(), map[string]any{"token": token, "reportId": "r-1"})
	require.True(t, env.Success)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "doc-1", data["reportDocumentId"])
}

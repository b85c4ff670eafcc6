// Package dispatcher composes, signs, transmits, classifies, and retries
// HTTPS calls to the upstream SP-API — the pipeline every operation
// adapter drives.
package dispatcher

import (
	"net/url"
	"time"
)

// RequestContext describes one dispatcher call. Its lifetime is a single
// dispatcher invocation (which may itself perform several HTTP attempts
// across retries).
type RequestContext struct {
	OperationName string
	Method        string
	// PathTemplate is the rate-limit bucket key (e.g.
	// "/orders/v0/orders/{id}/orderItems"); Path is the literal request
	// path sent on the wire.
	PathTemplate string
	Path         string
	Query        url.Values
	Body         []byte
	Headers      map[string]string
	MarketplaceID string
	Region        string
	EndpointHost  string
	RetryBudget   int
	Deadline      time.Time
}

// Package spapi implements the operation adapters: one function per
// tool in the required surface, each translating caller parameters into
// a dispatcher.RequestContext, running the response through the filter
// engine, and returning a ResponseEnvelope.
package spapi

import (
	"context"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/config"
	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
	"github.com/Mindburn-Labs/spapi-core/pkg/errkind"
	"github.com/Mindburn-Labs/spapi-core/pkg/filter"
	"github.com/Mindburn-Labs/spapi-core/pkg/marketplace"
	"github.com/Mindburn-Labs/spapi-core/pkg/pagination"
	"github.com/Mindburn-Labs/spapi-core/pkg/session"
)

// FBM inventory config constants, referenced by updateFbmInventory,
// bulkUpdateFbmInventory validation, and requestReport housekeeping.
const (
	DefaultHandlingTimeDays = 2
	MinHandlingTimeDays     = 1
	MaxHandlingTimeDays     = 30
	MaxBulkUpdateSize       = 10000
	ReportRetentionDays     = 7
)

// Core wires the components every operation adapter depends on. It is
// the explicit value the design notes call for in place of the source's
// global mutable state: constructed once at startup, passed into every
// operation, and freely substituted in tests.
type Core struct {
	Dispatcher *dispatcher.Dispatcher
	Filters    filter.Catalog
	Sessions   *session.Gate
	Limits     filter.Limits
	Clock      func() time.Time

	// HostPolicies is an optional host allowlist keyed by marketplace id
	// (marketplace.Marketplace.ID). A marketplace absent from the map
	// dispatches unrestricted.
	HostPolicies map[string]*config.MarketplaceProfile
}

// dispatch is the sole path every operation adapter uses to reach the
// dispatcher: it enforces the marketplace's host policy, when configured,
// before handing rc to the dispatcher pipeline.
func (c *Core) dispatch(ctx context.Context, rc dispatcher.RequestContext) (*dispatcher.Result, *envelope.Envelope) {
	if policy, ok := c.HostPolicies[rc.MarketplaceID]; ok && !policy.IsHostAllowed(rc.EndpointHost) {
		env := envelope.Err(errkind.InvalidInput, "endpoint host not permitted by marketplace policy: "+rc.EndpointHost, c.baseMetaFor(rc))
		return nil, &env
	}
	return c.Dispatcher.Do(ctx, rc)
}

func (c *Core) baseMetaFor(rc dispatcher.RequestContext) envelope.Metadata {
	return baseMetadata(rc.MarketplaceID)
}

func (c *Core) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// requireSession validates the token parameter against the session
// gate, the first action of every operation but authenticate.
func (c *Core) requireSession(params map[string]any) error {
	token, _ := params["token"].(string)
	if !c.Sessions.Valid(token) {
		return &authFailedError{}
	}
	return nil
}

type authFailedError struct{}

func (*authFailedError) Error() string { return "invalid or missing session token" }

// resolveMarketplace picks the endpoint host and signing region for the
// first marketplace id in ids, defaulting when ids is empty.
func resolveMarketplace(ids []string) marketplace.Marketplace {
	if len(ids) == 0 {
		return marketplace.DefaultMarketplace()
	}
	if mp, ok := marketplace.Lookup(ids[0]); ok {
		return mp
	}
	return marketplace.DefaultMarketplace()
}

// toEnvelope classifies err into the right ErrorKind and wraps it as an
// Err envelope, or wraps data as an Ok envelope when err is nil.
func toEnvelope(operation string, data any, meta envelope.Metadata, err error) envelope.Envelope {
	if err == nil {
		return envelope.Ok(data, meta)
	}
	switch e := err.(type) {
	case *authFailedError:
		return envelope.Err(errkind.AuthFailed, err.Error(), meta)
	case *InvalidInputError:
		return envelope.Err(errkind.InvalidInput, err.Error(), meta)
	case *filter.InvalidInputError:
		return envelope.Err(errkind.InvalidInput, err.Error(), meta)
	case *filter.EvalError:
		return envelope.Err(errkind.FilterFailed, err.Error(), meta)
	case *dispatchFailure:
		return e.env
	default:
		return envelope.Err(errkind.Internal, err.Error(), meta)
	}
}

func baseMetadata(marketplaceID string) envelope.Metadata {
	return envelope.Metadata{
		Timestamp:     time.Now().UTC(),
		MarketplaceID: marketplaceID,
	}
}

// applyFilterFamily runs the shared filterId/filterChain/customFilter/
// reduceResponse parameter family against data and folds the outcome's
// size/reduction metadata into meta.
func (c *Core) applyFilterFamily(operation string, data any, params map[string]any, meta envelope.Metadata) (any, envelope.Metadata, error) {
	req := filter.Request{
		FilterID:     optionalString(params, "filterId", ""),
		FilterChain:  optionalString(params, "filterChain", ""),
		CustomFilter: optionalString(params, "customFilter", ""),
		Reduce:       truthyParam(params["reduceResponse"]),
	}
	if fp, ok := params["filterParams"].(map[string]any); ok {
		req.Params = fp
	}
	if c.Filters == nil {
		return data, meta, nil
	}
	outcome, err := filter.Apply(operation, data, req, c.Filters, c.defaultResolver(), c.Limits)
	if err != nil {
		return nil, meta, err
	}
	meta = meta.WithExtra(map[string]any{
		"originalSize":     outcome.OriginalSize,
		"finalSize":        outcome.FinalSize,
		"reductionPercent": outcome.ReductionPct,
		"filtersApplied":   outcome.FiltersApplied,
	})
	return outcome.Data, meta, nil
}

func (c *Core) defaultResolver() filter.DefaultResolver {
	type defaultProvider interface {
		DefaultFor(operation string) (filter.Definition, bool)
	}
	if dp, ok := c.Filters.(defaultProvider); ok {
		return dp.DefaultFor
	}
	return nil
}

func truthyParam(v any) bool {
	b, _ := v.(bool)
	return b
}

// runPaginated drives a paginated list operation, decoding each page's
// records and next-page token from the response body with recordsOf.
func runPaginated(ctx context.Context, c *Core, mkRC func(nextToken string) dispatcher.RequestContext, recordsOf func([]byte) (pagination.Page, error), cap int, deadline time.Time) (pagination.Result, error) {
	fetch := func(ctx context.Context, token string) (pagination.Page, error) {
		res, env := c.dispatch(ctx, mkRC(token))
		if env != nil {
			return pagination.Page{}, envelopeToError(*env)
		}
		return recordsOf(res.Body)
	}
	return pagination.Drive(ctx, fetch, cap, deadline, pagination.NewPacer())
}

func envelopeToError(env envelope.Envelope) error {
	return &dispatchFailure{env: env}
}

type dispatchFailure struct{ env envelope.Envelope }

func (d *dispatchFailure) Error() string { return d.env.Message }

package spapi

import (
	"context"

	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
	"github.com/Mindburn-Labs/spapi-core/pkg/filter"
)

// searchableCatalog is the search surface listFilters needs from a
// catalog implementation, kept narrow the same way defaultProvider is.
type searchableCatalog interface {
	Search(ctx context.Context, endpoint, category, kind, searchTerm string) ([]filter.Definition, error)
}

// Authenticate implements the authenticate tool: the sole way to obtain a
// session token.
func (c *Core) Authenticate(ctx context.Context, params map[string]any) envelope.Envelope {
	token, err := c.Sessions.Mint()
	if err != nil {
		return toEnvelope("authenticate", nil, baseMetadata(""), err)
	}
	return toEnvelope("authenticate", map[string]any{"token": token}, baseMetadata(""), nil)
}

// ListFilters implements the listFilters tool.
func (c *Core) ListFilters(ctx context.Context, params map[string]any) envelope.Envelope {
	if err := c.requireSession(params); err != nil {
		return toEnvelope("listFilters", nil, baseMetadata(""), err)
	}
	meta := baseMetadata("")
	searcher, ok := c.Filters.(searchableCatalog)
	if !ok {
		return toEnvelope("listFilters", []any{}, meta, nil)
	}
	results, err := searcher.Search(ctx,
		optionalString(params, "endpoint", ""),
		optionalString(params, "category", ""),
		optionalString(params, "kind", ""),
		optionalString(params, "searchTerm", ""),
	)
	if err != nil {
		return toEnvelope("listFilters", nil, meta, err)
	}
	return toEnvelope("listFilters", results, meta, nil)
}

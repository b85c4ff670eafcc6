package filter

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
)

// InvalidInputError marks a filter-application failure that maps onto
// ErrorKind.InvalidInput rather than ErrorKind.FilterFailed: an unknown
// filter id, an unresolvable chain step, or a missing required
// parameter. Callers distinguish the two with errors.As.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string { return e.Msg }

// Definition is one catalog entry: a named, parameterized filter
// expression plus its declared parameter defaults and required names.
type Definition struct {
	ID       string
	Endpoint string
	Category string
	Kind     string
	Expr     string
	Defaults map[string]any
	Required []string
}

// Catalog resolves filter ids and chain ids to their definitions. A
// filter catalog store satisfies this with its getById/listChainSteps
// queries.
type Catalog interface {
	Get(id string) (Definition, bool)
	ChainSteps(id string) ([]string, bool)
}

// Request describes one filter invocation as carried by an operation's
// tool parameters.
type Request struct {
	FilterID     string
	FilterChain  string
	CustomFilter string
	Params       map[string]any
	Reduce       bool
}

// Outcome is a filter application result plus the size/reduction
// metadata every filtered response reports.
type Outcome struct {
	Data           any
	OriginalSize   int
	FinalSize      int
	ReductionPct   float64
	FiltersApplied []string
}

// DefaultResolver looks up the default reduction filter registered for
// an operation name, used only when Request.Reduce is set and no
// explicit filter/chain/custom expression was supplied.
type DefaultResolver func(operation string) (Definition, bool)

// Apply runs req against data. Precedence follows the single named
// filter, chain, ad-hoc expression, default-reduction order; when none
// apply the data passes through unchanged.
func Apply(operation string, data any, req Request, catalog Catalog, resolveDefault DefaultResolver, limits Limits) (*Outcome, error) {
	originalSize, err := envelope.CanonicalSize(data)
	if err != nil {
		return nil, &EvalError{Msg: fmt.Sprintf("cannot size input: %v", err)}
	}

	switch {
	case req.FilterID != "":
		def, ok := catalog.Get(req.FilterID)
		if !ok {
			return nil, &InvalidInputError{Msg: "unknown filter id: " + req.FilterID}
		}
		out, err := applyDefinition(def, data, req.Params, limits)
		if err != nil {
			return nil, err
		}
		return finish(out, []string{def.ID}, originalSize)

	case req.FilterChain != "":
		ids, err := resolveChainIDs(req.FilterChain, catalog)
		if err != nil {
			return nil, err
		}
		cur := data
		for _, id := range ids {
			def, ok := catalog.Get(id)
			if !ok {
				return nil, &InvalidInputError{Msg: "unknown filter id in chain: " + id}
			}
			out, err := applyDefinition(def, cur, req.Params, limits)
			if err != nil {
				return nil, err
			}
			cur = out
		}
		return finish(cur, ids, originalSize)

	case req.CustomFilter != "":
		node, err := Parse(req.CustomFilter)
		if err != nil {
			return nil, &EvalError{Msg: err.Error()}
		}
		out, err := Eval(node, data, nil, limits)
		if err != nil {
			return nil, err
		}
		return finish(out, []string{"<custom>"}, originalSize)

	case req.Reduce && resolveDefault != nil:
		if def, ok := resolveDefault(operation); ok {
			out, err := applyDefinition(def, data, req.Params, limits)
			if err != nil {
				return nil, err
			}
			return finish(out, []string{def.ID}, originalSize)
		}
		return finish(data, nil, originalSize)

	default:
		return finish(data, nil, originalSize)
	}
}

func applyDefinition(def Definition, data any, supplied map[string]any, limits Limits) (any, error) {
	node, err := Parse(def.Expr)
	if err != nil {
		return nil, &EvalError{Msg: fmt.Sprintf("filter %s: %v", def.ID, err)}
	}
	params, err := BindParams(def.Defaults, def.Required, supplied)
	if err != nil {
		return nil, &InvalidInputError{Msg: err.Error()}
	}
	out, err := Eval(node, data, params, limits)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolveChainIDs accepts either a literal comma-separated list of
// filter ids or a single id registered in filter_chains.
func resolveChainIDs(spec string, catalog Catalog) ([]string, error) {
	if strings.Contains(spec, ",") {
		parts := strings.Split(spec, ",")
		ids := make([]string, len(parts))
		for i, p := range parts {
			ids[i] = strings.TrimSpace(p)
		}
		return ids, nil
	}
	if steps, ok := catalog.ChainSteps(spec); ok {
		return steps, nil
	}
	if _, ok := catalog.Get(spec); ok {
		return []string{spec}, nil
	}
	return nil, &InvalidInputError{Msg: "unknown chain or filter id: " + spec}
}

func finish(data any, applied []string, originalSize int) (*Outcome, error) {
	finalSize, err := envelope.CanonicalSize(data)
	if err != nil {
		return nil, &EvalError{Msg: fmt.Sprintf("cannot size output: %v", err)}
	}
	pct := 0.0
	if originalSize > 0 {
		pct = roundTo1(float64(originalSize-finalSize) / float64(originalSize) * 100)
	}
	return &Outcome{
		Data:           data,
		OriginalSize:   originalSize,
		FinalSize:      finalSize,
		ReductionPct:   pct,
		FiltersApplied: applied,
	}, nil
}

func roundTo1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

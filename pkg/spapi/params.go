package spapi

import (
	"fmt"
	"regexp"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/marketplace"
)

// InvalidInputError marks a boundary validation failure that maps onto
// ErrorKind.InvalidInput before any network call is made.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string { return e.Msg }

func invalidf(format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Msg: fmt.Sprintf(format, args...)}
}

func requireString(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", invalidf("missing required parameter %q", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", invalidf("parameter %q must be a non-empty string", name)
	}
	return s, nil
}

func optionalString(params map[string]any, name, def string) string {
	v, ok := params[name]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func optionalFloat(params map[string]any, name string, def float64) (float64, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	default:
		return 0, invalidf("parameter %q must be a number", name)
	}
}

func requireFloat(params map[string]any, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, invalidf("missing required parameter %q", name)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	default:
		return 0, invalidf("parameter %q must be a number", name)
	}
}

func optionalStringSlice(params map[string]any, name string) []string {
	v, ok := params[name]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// validateMarketplaces resolves a caller-supplied marketplaceIds list
// (or the default marketplace when absent) and rejects unknown ids
// before any network call.
func validateMarketplaces(params map[string]any) ([]string, error) {
	ids := optionalStringSlice(params, "marketplaceIds")
	if len(ids) == 0 {
		ids = []string{marketplace.DefaultMarketplace().ID}
	}
	if ok, bad := marketplace.ValidateAll(ids); !ok {
		return nil, invalidf("unknown marketplace id(s): %v", bad)
	}
	return ids, nil
}

var skuForbidden = regexp.MustCompile(`[<>:"|?*]`)

func validateSKU(sku string) error {
	if sku == "" {
		return invalidf("sku must not be empty")
	}
	if skuForbidden.MatchString(sku) {
		return invalidf("sku %q contains forbidden characters", sku)
	}
	return nil
}

func validateHandlingTime(days float64) error {
	if days < MinHandlingTimeDays || days > MaxHandlingTimeDays {
		return invalidf("handlingTime must be between %d and %d, got %v", MinHandlingTimeDays, MaxHandlingTimeDays, days)
	}
	return nil
}

func validateRestockDate(iso string, now time.Time) error {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return invalidf("restockDate %q is not ISO-8601", iso)
	}
	if !t.After(now) {
		return invalidf("restockDate %q must be strictly in the future", iso)
	}
	return nil
}

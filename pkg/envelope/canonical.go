package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// canonicalMarshal serializes v as compact JSON with sorted map keys and
// no HTML escaping, giving a stable byte size usable for before/after
// size comparisons in filter reduction metadata. Go's encoding/json
// already sorts map[string]any keys lexicographically on marshal, so no
// extra key-sorting pass is required.
func canonicalMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical encoding failed: %w", err)
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// CanonicalSize returns the byte length of v's canonical JSON encoding.
func CanonicalSize(v any) (int, error) {
	b, err := canonicalMarshal(v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

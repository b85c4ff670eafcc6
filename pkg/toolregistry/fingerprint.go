package toolregistry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// fingerprint returns a stable hash of a tool's externally visible
// contract: its parameter schema. Handler identity is deliberately
// excluded since a handler can be rebound (e.g. in tests) without the
// caller-facing contract changing.
func (t Tool) fingerprint() string {
	data, err := canonicalMarshal(t.ParameterSchema)
	if err != nil {
		data = []byte(fmt.Sprintf("%s:%s", t.Name, t.Description))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalMarshal produces compact JSON with sorted map keys and no
// HTML escaping, so the same schema always hashes to the same bytes.
func canonicalMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// changeDetector tracks each registered tool's last-known schema
// fingerprint and refuses invocation of a tool whose schema changed
// underneath a caller until the registry owner acknowledges the new
// contract via AcknowledgeChange. This guards against a tool's
// accepted parameters silently drifting between the time a caller
// discovers the tool (via Search/Get) and the time it invokes it.
type changeDetector struct {
	baseline map[string]string
	pending  map[string]string
}

func newChangeDetector() *changeDetector {
	return &changeDetector{
		baseline: make(map[string]string),
		pending:  make(map[string]string),
	}
}

// observe records fp as the baseline the first time name is seen, or
// marks name pending reevaluation if fp differs from the recorded
// baseline.
func (d *changeDetector) observe(name, fp string) {
	old, known := d.baseline[name]
	if !known {
		d.baseline[name] = fp
		return
	}
	if old != fp {
		d.pending[name] = fp
	}
}

func (d *changeDetector) requiresAck(name string) (string, bool) {
	fp, ok := d.pending[name]
	return fp, ok
}

func (d *changeDetector) acknowledge(name string) {
	if fp, ok := d.pending[name]; ok {
		d.baseline[name] = fp
		delete(d.pending, name)
	}
}

// ToolChangedError is returned by Invoke when a tool's parameter
// schema changed since it was first registered and the change has not
// been acknowledged with AcknowledgeChange.
type ToolChangedError struct {
	Name           string
	OldFingerprint string
	NewFingerprint string
}

func (e *ToolChangedError) Error() string {
	return fmt.Sprintf("tool %q schema changed (%s -> %s), acknowledge before invoking", e.Name, e.OldFingerprint[:12], e.NewFingerprint[:12])
}

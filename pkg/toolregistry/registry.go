// Package toolregistry exposes spapi operation adapters as named tools
// over the (name, parameterSchema, handler) contract an external
// tool-invocation transport drives: it delivers a parameter map and
// awaits a single JSON-serializable result.
package toolregistry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
	"github.com/Mindburn-Labs/spapi-core/pkg/errkind"
)

// Handler executes one tool invocation against a caller-supplied
// parameter map.
type Handler func(ctx context.Context, params map[string]any) envelope.Envelope

// Tool is one entry in the registry: its name, a JSON-schema-ish
// description of accepted parameters, and the handler that runs it.
type Tool struct {
	Name           string
	Description    string
	ParameterSchema map[string]any
	Handler        Handler
}

func (t Tool) validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q: handler is required", t.Name)
	}
	return nil
}

// Registry is a process-wide, concurrency-safe table of tools, keyed by
// name. Registration happens once at startup; lookups happen on every
// invocation.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	changes *changeDetector
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool), changes: newChangeDetector()}
}

// Register adds t to the registry, replacing any existing tool of the
// same name. Registering a tool whose ParameterSchema differs from a
// previously registered tool of the same name marks it pending change
// acknowledgment; Invoke refuses it until AcknowledgeChange is called.
func (r *Registry) Register(t Tool) error {
	if err := t.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	r.changes.observe(t.Name, t.fingerprint())
	return nil
}

// AcknowledgeChange clears the pending-reevaluation flag for name,
// adopting its current schema as the new baseline.
func (r *Registry) AcknowledgeChange(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes.acknowledge(name)
}

// Get resolves a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Search returns every tool whose name or description contains query,
// case-insensitively. An empty query matches everything.
func (r *Registry) Search(query string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if q == "" || strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Invoke resolves name and runs its handler, returning an InvalidInput
// envelope when the tool is unknown so an unrecognized tool call never
// escapes the registry as a bare Go error.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) envelope.Envelope {
	t, ok := r.Get(name)
	if !ok {
		return envelope.Err(errkind.InvalidInput, fmt.Sprintf("unknown tool %q", name), envelope.Metadata{})
	}
	r.mu.RLock()
	newFP, pending := r.changes.requiresAck(name)
	oldFP := r.changes.baseline[name]
	r.mu.RUnlock()
	if pending {
		err := &ToolChangedError{Name: name, OldFingerprint: oldFP, NewFingerprint: newFP}
		return envelope.Err(errkind.Internal, err.Error(), envelope.Metadata{})
	}
	return t.Handler(ctx, params)
}

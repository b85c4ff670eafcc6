// Package envelope defines the uniform success/error response shape every
// operation adapter returns, and the canonical-JSON size accounting the
// filter post-processor attaches to it.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/errkind"
)

// Metadata accompanies every envelope, success or failure.
type Metadata struct {
	Timestamp     time.Time      `json:"timestamp"`
	MarketplaceID string         `json:"marketplaceId,omitempty"`
	RequestID     string         `json:"requestId"`
	Extra         map[string]any `json:"-"`
}

// Envelope is the discriminated Ok/Err union every adapter returns.
// Success is true for Ok, false for Err; exactly one of Data/ErrorKind
// is meaningful depending on Success.
type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Meta    Metadata `json:"metadata"`

	ErrorKind  errkind.Kind `json:"errorKind,omitempty"`
	Message    string       `json:"message,omitempty"`
	Details    any          `json:"details,omitempty"`
	RetryAfter *float64     `json:"retryAfter,omitempty"`
	StatusCode *int         `json:"statusCode,omitempty"`
}

// MarshalJSON flattens Metadata.Extra alongside the fixed metadata fields
// so callers see a single flat metadata object, matching the shape the
// original implementation's response formatter produces.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	meta := map[string]any{
		"timestamp": e.Meta.Timestamp.UTC().Format(time.RFC3339Nano),
		"requestId": e.Meta.RequestID,
	}
	if e.Meta.MarketplaceID != "" {
		meta["marketplaceId"] = e.Meta.MarketplaceID
	}
	for k, v := range e.Meta.Extra {
		meta[k] = v
	}
	out := struct {
		Success    bool         `json:"success"`
		Data       any          `json:"data,omitempty"`
		Meta       any          `json:"metadata"`
		ErrorKind  errkind.Kind `json:"errorKind,omitempty"`
		Message    string       `json:"message,omitempty"`
		Details    any          `json:"details,omitempty"`
		RetryAfter *float64     `json:"retryAfter,omitempty"`
		StatusCode *int         `json:"statusCode,omitempty"`
	}{
		Success:    e.Success,
		Data:       e.Data,
		Meta:       meta,
		ErrorKind:  e.ErrorKind,
		Message:    e.Message,
		Details:    e.Details,
		RetryAfter: e.RetryAfter,
		StatusCode: e.StatusCode,
	}
	return json.Marshal(out)
}

// Ok constructs a successful envelope.
func Ok(data any, meta Metadata) Envelope {
	return Envelope{Success: true, Data: data, Meta: meta}
}

// WithExtra returns a copy of meta with additional fields merged in,
// used by adapters and the post-processor to attach operation-specific
// metadata (pagination counts, pii warnings, reduction stats) without
// widening the Metadata struct itself.
func (m Metadata) WithExtra(extra map[string]any) Metadata {
	merged := make(map[string]any, len(m.Extra)+len(extra))
	for k, v := range m.Extra {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	m.Extra = merged
	return m
}

// Err constructs an error envelope of the given kind.
func Err(kind errkind.Kind, message string, meta Metadata) Envelope {
	return Envelope{Success: false, ErrorKind: kind, Message: message, Meta: meta}
}

// WithDetails attaches upstream error details to an Err envelope.
func (e Envelope) WithDetails(details any) Envelope {
	e.Details = details
	return e
}

// WithRetryAfter attaches a retry-after duration in seconds to an Err
// envelope.
func (e Envelope) WithRetryAfter(seconds float64) Envelope {
	e.RetryAfter = &seconds
	return e
}

// WithStatusCode attaches the originating upstream HTTP status code to an
// Err envelope.
func (e Envelope) WithStatusCode(code int) Envelope {
	e.StatusCode = &code
	return e
}

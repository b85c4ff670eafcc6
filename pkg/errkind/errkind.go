// Package errkind defines the bounded error taxonomy every operation
// adapter surfaces through envelope.Err. No other error shape crosses the
// adapter boundary.
package errkind

// Kind is one of the eight canonical error categories.
type Kind string

const (
	AuthFailed        Kind = "AuthFailed"
	InvalidInput      Kind = "InvalidInput"
	RateLimitExceeded Kind = "RateLimitExceeded"
	UpstreamError     Kind = "UpstreamError"
	NetworkError      Kind = "NetworkError"
	Timeout           Kind = "Timeout"
	FilterFailed      Kind = "FilterFailed"
	Internal          Kind = "Internal"
)

// Retryable reports whether the dispatcher may retry a call classified
// with this kind, independent of status code (callers that carry a
// status code apply the additional 5xx/429 filter themselves).
func (k Kind) Retryable() bool {
	switch k {
	case RateLimitExceeded, NetworkError:
		return true
	default:
		return false
	}
}

// RetryableUpstreamStatus reports whether an UpstreamError with the given
// HTTP status code is retry-eligible (5xx only; 4xx other than 429/401 is
// terminal).
func RetryableUpstreamStatus(status int) bool {
	switch status {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

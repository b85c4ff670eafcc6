package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
	"github.com/Mindburn-Labs/spapi-core/pkg/credentials"
	"github.com/Mindburn-Labs/spapi-core/pkg/envelope"
	"github.com/Mindburn-Labs/spapi-core/pkg/errkind"
	"github.com/Mindburn-Labs/spapi-core/pkg/ratelimit"
	"github.com/Mindburn-Labs/spapi-core/pkg/signing"
)

// Mode selects how the dispatcher behaves when the rate limiter denies
// admission: Wait cooperatively sleeps until a token is available;
// FailFast returns ErrorKind.RateLimitExceeded immediately.
type Mode string

const (
	ModeWait     Mode = "wait"
	ModeFailFast Mode = "fail-fast"
)

// Transport is the minimal HTTP surface the dispatcher needs, satisfied
// by *http.Client and by test doubles.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher composes the rate limiter, credential manager, signer, and
// transport into the pipeline described by the operation flow: acquire a
// rate token, obtain credentials, sign, send, classify, retry.
type Dispatcher struct {
	Limiter     *ratelimit.Limiter
	Credentials *credentials.Manager
	Transport   Transport
	Clock       clock.Source
	Jitter      clock.JitterSource
	Backoff     clock.BackoffPolicy
	Mode        Mode
	Logger      *slog.Logger
}

// Result is the raw outcome of a successful (2xx) dispatch: the status
// code, the undecoded response body and the request id used for the
// winning attempt.
type Result struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// classified is the internal outcome of a single HTTP attempt.
type classified struct {
	kind       errkind.Kind
	retryable  bool
	statusCode int
	retryAfter float64
	message    string
	details    any
}

// Do runs the full pipeline for rc, returning either a successful Result
// or an envelope.Envelope describing the terminal failure. Exactly one of
// the two returned pointers is non-nil.
func (d *Dispatcher) Do(ctx context.Context, rc RequestContext) (*Result, *envelope.Envelope) {
	logger := d.logger()
	attempt := 0
	forcedAuthRetryUsed := false

	for {
		select {
		case <-ctx.Done():
			env := envelope.Err(errkind.Timeout, "operation deadline exceeded", d.baseMeta(rc, ""))
			return nil, &env
		default:
		}

		admitted, retryAfter, admitErr := d.Limiter.Admit(ctx, rc.PathTemplate)
		if admitErr != nil {
			env := envelope.Err(errkind.Internal, fmt.Sprintf("rate limiter error: %v", admitErr), d.baseMeta(rc, ""))
			return nil, &env
		}
		if !admitted {
			if d.Mode == ModeFailFast {
				env := envelope.Err(errkind.RateLimitExceeded, "local rate limit exceeded", d.baseMeta(rc, "")).WithRetryAfter(retryAfter)
				return nil, &env
			}
			logger.Debug("rate limit wait", "operation", rc.OperationName, "retryAfter", retryAfter)
			d.Clock.Sleep(durationFromSeconds(retryAfter))
			continue
		}

		artifacts, credErr := d.obtainCredentials(ctx, rc.Region)
		if credErr != nil {
			env := envelope.Err(errkind.AuthFailed, credErr.Error(), d.baseMeta(rc, ""))
			return nil, &env
		}

		signed, signErr := signing.Sign(ctx, rc.Method, buildURL(rc), rc.Body, rc.Region, artifacts)
		if signErr != nil {
			env := envelope.Err(errkind.Internal, signErr.Error(), d.baseMeta(rc, ""))
			return nil, &env
		}
		for k, v := range rc.Headers {
			signed.Request.Header.Set(k, v)
		}

		resp, doErr := d.Transport.Do(signed.Request)
		var body []byte
		if doErr == nil && resp != nil {
			body, _ = readAll(resp)
			_ = resp.Body.Close()
		}
		outcome := d.classify(resp, body, doErr)

		if outcome.kind == "" {
			return &Result{StatusCode: resp.StatusCode, Body: body, RequestID: signed.RequestID}, nil
		}

		logger.Warn("dispatch attempt failed",
			"operation", rc.OperationName, "attempt", attempt, "kind", outcome.kind, "status", outcome.statusCode)

		if outcome.kind == errkind.AuthFailed && outcome.statusCode == http.StatusUnauthorized && !forcedAuthRetryUsed {
			forcedAuthRetryUsed = true
			d.forceCredentialRefresh(rc.Region)
			continue
		}

		if !outcome.retryable || rc.RetryBudget <= attempt {
			env := envelope.Err(outcome.kind, outcome.message, d.baseMeta(rc, signed.RequestID))
			if outcome.details != nil {
				env = env.WithDetails(outcome.details)
			}
			if outcome.statusCode != 0 {
				env = env.WithStatusCode(outcome.statusCode)
			}
			if outcome.retryAfter > 0 {
				env = env.WithRetryAfter(outcome.retryAfter)
			}
			return nil, &env
		}

		delay := clock.Compute(d.Backoff, attempt, d.Jitter)
		if outcome.kind == errkind.RateLimitExceeded && outcome.retryAfter > 0 {
			delay = durationFromSeconds(outcome.retryAfter)
		}
		attempt++
		d.Clock.Sleep(delay)
	}
}

func (d *Dispatcher) obtainCredentials(ctx context.Context, region string) (credentials.Artifacts, error) {
	access, err := d.Credentials.AccessToken(ctx, region)
	if err != nil {
		return credentials.Artifacts{}, err
	}
	signed, err := d.Credentials.Signed(ctx, region)
	if err != nil {
		return credentials.Artifacts{}, err
	}
	return credentials.Artifacts{AccessToken: access, Signed: signed}, nil
}

// forceCredentialRefresh does nothing: the credential manager has no
// invalidation hook and refreshes an artifact only when it is missing or
// within SafetyMargin of expiry. The single retry Do makes after a 401
// therefore reuses the cached credentials unless they have reached that
// margin in the meantime; the 401 itself does not cause a new token
// exchange.
func (d *Dispatcher) forceCredentialRefresh(region string) {}

func (d *Dispatcher) classify(resp *http.Response, body []byte, err error) classified {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return classified{kind: errkind.Timeout, message: err.Error()}
		}
		return classified{kind: errkind.NetworkError, retryable: true, message: err.Error()}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return classified{}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return classified{kind: errkind.AuthFailed, statusCode: resp.StatusCode, message: "upstream rejected credentials", details: string(body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp)
		return classified{kind: errkind.RateLimitExceeded, statusCode: resp.StatusCode, retryable: true, retryAfter: retryAfter, message: "upstream rate limit exceeded", details: string(body)}
	case errkind.RetryableUpstreamStatus(resp.StatusCode):
		return classified{kind: errkind.UpstreamError, statusCode: resp.StatusCode, retryable: true, message: "upstream server error", details: string(body)}
	default:
		return classified{kind: errkind.UpstreamError, statusCode: resp.StatusCode, message: "upstream error", details: string(body)}
	}
}

func parseRetryAfter(resp *http.Response) float64 {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(h, 64); err == nil {
		return secs
	}
	if t, err := http.ParseTime(h); err == nil {
		return time.Until(t).Seconds()
	}
	return 0
}

func (d *Dispatcher) baseMeta(rc RequestContext, requestID string) envelope.Metadata {
	return envelope.Metadata{
		Timestamp:     d.Clock.Now(),
		MarketplaceID: rc.MarketplaceID,
		RequestID:     requestID,
	}
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func buildURL(rc RequestContext) string {
	u := "https://" + rc.EndpointHost + rc.Path
	if len(rc.Query) > 0 {
		u += "?" + rc.Query.Encode()
	}
	return u
}

func durationFromSeconds(s float64) time.Duration {
	if s < 0 {
		s = 0
	}
	return time.Duration(s * float64(time.Second))
}

func readAll(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	return io.ReadAll(resp.Body)
}

// DecodeJSON is a small helper adapters use to unmarshal a Result body,
// keeping the json import out of every adapter file.
func DecodeJSON(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	return dec.Decode(v)
}

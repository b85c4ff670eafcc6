// Package signing produces the canonical signed authorization header
// required by the region's signing scheme (AWS SigV4, service
// "execute-api"), plus the fixed set of correlation and auth headers
// every outbound SP-API request carries.
package signing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	awsv4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/google/uuid"

	"github.com/Mindburn-Labs/spapi-core/pkg/credentials"
)

// UserAgent is the stable client identifier sent on every request.
const UserAgent = "spapi-core/1.0 (Language=Go)"

// Service is the signing service name SP-API requires.
const Service = "execute-api"

// Signed carries everything the dispatcher needs to send a fully-formed
// request: the *http.Request itself and the request id assigned for
// correlation.
type Signed struct {
	Request   *http.Request
	RequestID string
}

// Sign builds and signs an HTTPS request for the given method/url/body
// against region, using the supplied credential artifacts. It sets
// x-amz-access-token, user-agent, content-type (when body is non-empty),
// and a unique x-request-id, then applies SigV4 signing over the whole
// request including those headers.
func Sign(ctx context.Context, method, url string, body []byte, region string, artifacts credentials.Artifacts) (*Signed, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("signing: building request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("x-amz-access-token", artifacts.AccessToken.Token)
	req.Header.Set("user-agent", UserAgent)
	req.Header.Set("x-request-id", requestID)
	if len(body) > 0 {
		req.Header.Set("content-type", "application/json")
	}

	bodyHash := hashBody(body)

	creds, err := artifacts.Signed.CredentialsProvider().Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("signing: retrieving signed credentials: %w", err)
	}

	signer := awsv4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, req, bodyHash, Service, region, time.Now()); err != nil {
		return nil, fmt.Errorf("signing: sigv4 sign failed: %w", err)
	}

	return &Signed{Request: req, RequestID: requestID}, nil
}

// hashBody returns the hex-encoded SHA-256 of body, or the SHA-256 of the
// empty string when body is empty, as SigV4 requires a body hash even for
// bodyless requests.
func hashBody(body []byte) string {
	h := sha256.Sum256(body)
	return hex.EncodeToString(h[:])
}

// ReadAndHash consumes r fully and returns both the bytes and their hex
// SHA-256, for callers signing a request whose body arrives as a stream.
func ReadAndHash(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("signing: reading body: %w", err)
	}
	return data, hashBody(data), nil
}

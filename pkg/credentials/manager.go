package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"golang.org/x/sync/singleflight"

	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
)

// TokenEndpointConfig configures the identity-provider refresh exchange.
type TokenEndpointConfig struct {
	Endpoint     string
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// Enabled reports whether enough configuration is present to perform the
// refresh exchange. Absent identity-provider values disable authenticated
// operations rather than crashing the process.
func (c TokenEndpointConfig) Enabled() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// SignedCredentialConfig configures the identity-federation exchange for
// signed-request credentials.
type SignedCredentialConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	RoleARN         string // optional delegated role; empty uses the static pair directly
	STSClient       *sts.Client
}

// Enabled reports whether a static key pair is configured.
func (c SignedCredentialConfig) Enabled() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Manager caches and refreshes both credential artifacts, keyed by
// region. A single in-flight refresh per (region, kind) is coalesced via
// singleflight so concurrent observers of an expired artifact await one
// upstream call.
type Manager struct {
	tokenCfg  TokenEndpointConfig
	signedCfg SignedCredentialConfig
	clk       clock.Source
	httpClient *http.Client

	mu     sync.RWMutex
	tokens map[string]AccessToken       // region -> access token
	signed map[string]SignedCredentials // region -> signed credentials

	group singleflight.Group
}

// NewManager constructs a credential Manager.
func NewManager(tokenCfg TokenEndpointConfig, signedCfg SignedCredentialConfig, clk clock.Source) *Manager {
	return &Manager{
		tokenCfg:   tokenCfg,
		signedCfg:  signedCfg,
		clk:        clk,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     make(map[string]AccessToken),
		signed:     make(map[string]SignedCredentials),
	}
}

// AuthFailedError marks a credential refresh failure so the dispatcher can
// classify it as ErrorKind.AuthFailed without inspecting error text.
type AuthFailedError struct {
	Op  string
	Err error
}

func (e *AuthFailedError) Error() string { return fmt.Sprintf("credentials: %s: %v", e.Op, e.Err) }
func (e *AuthFailedError) Unwrap() error { return e.Err }

// AccessToken returns a valid access token, refreshing it first if it is
// missing or within SafetyMargin of expiry. The refresh exchange does not
// depend on region, but tokens are cached per region, so each distinct
// region value (including "") holds and refreshes its own token.
func (m *Manager) AccessToken(ctx context.Context, region string) (AccessToken, error) {
	m.mu.RLock()
	cur := m.tokens[region]
	m.mu.RUnlock()
	if !cur.expired(m.clk.Now()) {
		return cur, nil
	}

	v, err, _ := m.group.Do("access:"+region, func() (any, error) {
		m.mu.RLock()
		cur := m.tokens[region]
		m.mu.RUnlock()
		if !cur.expired(m.clk.Now()) {
			return cur, nil
		}
		fresh, err := m.refreshAccessToken(ctx)
		if err != nil {
			return AccessToken{}, &AuthFailedError{Op: "refresh access token", Err: err}
		}
		m.mu.Lock()
		m.tokens[region] = fresh
		m.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return AccessToken{}, err
	}
	return v.(AccessToken), nil
}

func (m *Manager) refreshAccessToken(ctx context.Context) (AccessToken, error) {
	if !m.tokenCfg.Enabled() {
		return AccessToken{}, fmt.Errorf("identity provider not configured")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {m.tokenCfg.RefreshToken},
		"client_id":     {m.tokenCfg.ClientID},
		"client_secret": {m.tokenCfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenCfg.Endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return AccessToken{}, fmt.Errorf("refresh rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return AccessToken{}, fmt.Errorf("decoding refresh response: %w", err)
	}

	return AccessToken{
		Token:     body.AccessToken,
		ExpiresAt: m.clk.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

// Signed returns valid signed-request credentials for region, refreshing
// via role assumption (if a delegated role is configured) or returning
// the static pair directly.
func (m *Manager) Signed(ctx context.Context, region string) (SignedCredentials, error) {
	m.mu.RLock()
	cur := m.signed[region]
	m.mu.RUnlock()
	if !cur.expired(m.clk.Now()) {
		return cur, nil
	}

	v, err, _ := m.group.Do("signed:"+region, func() (any, error) {
		m.mu.RLock()
		cur := m.signed[region]
		m.mu.RUnlock()
		if !cur.expired(m.clk.Now()) {
			return cur, nil
		}
		fresh, err := m.refreshSigned(ctx, region)
		if err != nil {
			return SignedCredentials{}, &AuthFailedError{Op: "refresh signed credentials", Err: err}
		}
		m.mu.Lock()
		m.signed[region] = fresh
		m.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return SignedCredentials{}, err
	}
	return v.(SignedCredentials), nil
}

func (m *Manager) refreshSigned(ctx context.Context, region string) (SignedCredentials, error) {
	if !m.signedCfg.Enabled() {
		return SignedCredentials{}, fmt.Errorf("signing credentials not configured")
	}

	if m.signedCfg.RoleARN == "" || m.signedCfg.STSClient == nil {
		return SignedCredentials{
			KeyID:  m.signedCfg.AccessKeyID,
			Secret: m.signedCfg.SecretAccessKey,
			static: true,
		}, nil
	}

	sessionName := fmt.Sprintf("spapi-core-%d", m.clk.Now().UnixNano())
	out, err := m.signedCfg.STSClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(m.signedCfg.RoleARN),
		RoleSessionName: aws.String(sessionName),
	})
	if err != nil {
		return SignedCredentials{}, fmt.Errorf("assume role for region %s: %w", region, err)
	}
	if out.Credentials == nil {
		return SignedCredentials{}, fmt.Errorf("assume role returned no credentials")
	}
	return SignedCredentials{
		KeyID:     aws.ToString(out.Credentials.AccessKeyId),
		Secret:    aws.ToString(out.Credentials.SecretAccessKey),
		Session:   aws.ToString(out.Credentials.SessionToken),
		ExpiresAt: aws.ToTime(out.Credentials.Expiration),
	}, nil
}

// CredentialsProvider adapts a fixed SignedCredentials into an
// aws.CredentialsProvider for consumption by the SigV4 signer.
func (c SignedCredentials) CredentialsProvider() aws.CredentialsProvider {
	return awscreds.NewStaticCredentialsProvider(c.KeyID, c.Secret, c.Session)
}

package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies an authentication token for GitHub API requests.
// Implementations may mint and cache short-lived tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed personal access token.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a token source around a personal access
// token or the GITHUB_TOKEN from Actions.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("github token is empty")
	}
	return s.token, nil
}

// MockTokenSource returns a canned token for local development against
// the mock client. It must never be wired in production; the factory in
// cmd enforces that.
type MockTokenSource struct{}

func (MockTokenSource) Token(_ context.Context) (string, error) {
	return "mock-github-token", nil
}

const (
	// App JWTs are valid for at most 10 minutes; stay under the cap so
	// clock skew on GitHub's side does not reject the assertion.
	appJWTLifetime = 9 * time.Minute

	// Refresh installation tokens a minute before they expire.
	tokenExpirySlack = time.Minute
)

// AppTokenSource authenticates as a GitHub App installation. It signs a
// short-lived JWT with the app's private key, exchanges it for an
// installation access token, and caches the token until shortly before
// expiry. Safe for concurrent use.
type AppTokenSource struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	baseURL        string
	httpClient     *http.Client
	now            func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewAppTokenSource creates a token source for the given app installation.
// The key must be the app's RSA private key in PEM format.
func NewAppTokenSource(appID, installationID int64, privateKeyPEM []byte) (*AppTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}
	return &AppTokenSource{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		now:            time.Now,
	}, nil
}

// SetBaseURL sets a custom base URL (for testing).
func (s *AppTokenSource) SetBaseURL(url string) {
	s.baseURL = url
}

func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(tokenExpirySlack).Before(s.expiresAt) {
		return s.token, nil
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	token, expiresAt, err := s.mintInstallationToken(ctx, assertion)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = expiresAt
	return s.token, nil
}

// signAssertion builds the RS256 JWT that identifies the app itself.
// Issued-at is backdated 60 seconds to tolerate clock drift.
func (s *AppTokenSource) signAssertion() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    fmt.Sprintf("%d", s.appID),
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}
	return signed, nil
}

func (s *AppTokenSource) mintInstallationToken(ctx context.Context, assertion string) (string, time.Time, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", s.baseURL, s.installationID)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(nil))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to mint installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", time.Time{}, MapHTTPError(resp.StatusCode, bodyBytes)
	}

	var tokenResp installationTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", time.Time{}, fmt.Errorf("installation token response missing token")
	}

	expiresAt, err := time.Parse(time.RFC3339, tokenResp.ExpiresAt)
	if err != nil {
		// GitHub issues installation tokens for one hour.
		expiresAt = s.now().Add(time.Hour)
	}
	return tokenResp.Token, expiresAt, nil
}

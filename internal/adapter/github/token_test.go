package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, pemBytes
}

func TestStaticTokenSource(t *testing.T) {
	source := NewStaticTokenSource("ghp_example")
	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghp_example", token)

	_, err = NewStaticTokenSource("").Token(context.Background())
	require.Error(t, err)
}

func TestAppTokenSourceMintsAndCaches(t *testing.T) {
	key, pemBytes := generateTestKey(t)

	var mints int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&mints, 1)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/app/installations/321/access_tokens", r.URL.Path)

		// The assertion must be a JWT signed by the app's key with the
		// app ID as issuer.
		auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		parsed, parseErr := jwt.ParseWithClaims(auth, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		})
		require.NoError(t, parseErr)
		claims := parsed.Claims.(*jwt.RegisteredClaims)
		assert.Equal(t, "123", claims.Issuer)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"token":      "ghs_installation",
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	}))
	defer server.Close()

	source, err := NewAppTokenSource(123, 321, pemBytes)
	require.NoError(t, err)
	source.SetBaseURL(server.URL)

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token)

	// Second call hits the cache.
	token, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&mints))
}

func TestAppTokenSourceRefreshesNearExpiry(t *testing.T) {
	_, pemBytes := generateTestKey(t)

	var mints int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&mints, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"token":      "ghs_" + strings.Repeat("x", int(n)),
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	}))
	defer server.Close()

	source, err := NewAppTokenSource(123, 321, pemBytes)
	require.NoError(t, err)
	source.SetBaseURL(server.URL)

	first, err := source.Token(context.Background())
	require.NoError(t, err)

	// Move the clock past the cached token's refresh window.
	source.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	second, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&mints))
}

func TestAppTokenSourceRejectsBadKey(t *testing.T) {
	_, err := NewAppTokenSource(123, 321, []byte("not a pem key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse app private key")
}

func TestAppTokenSourceSurfacesAPIErrors(t *testing.T) {
	_, pemBytes := generateTestKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Integration not found"}`))
	}))
	defer server.Close()

	source, err := NewAppTokenSource(123, 321, pemBytes)
	require.NoError(t, err)
	source.SetBaseURL(server.URL)

	_, err = source.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Integration not found")
}

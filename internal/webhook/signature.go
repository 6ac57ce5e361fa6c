package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature validates a webhook body against the shared secret.
// The header carries "sha256=<hex>"; the comparison is constant-time on
// the raw MAC bytes, never a direct string compare.
func VerifySignature(body []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}

	received, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(received, expected)
}

// Sign computes the signature header value for a body and secret.
// Used by tests and the local delivery tooling.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

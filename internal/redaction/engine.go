package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Engine performs regex-based secret detection on pull request file
// content before it is handed to an optimization backend. Detected
// secrets are replaced with stable placeholders so repeated runs over
// the same file produce identical sanitized text.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine creates a redaction engine with the default secret patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// NewEngineWithPatterns creates an engine with additional operator-supplied
// patterns on top of the defaults. Invalid patterns are rejected.
func NewEngineWithPatterns(extra []string) (*Engine, error) {
	patterns := defaultPatterns()
	for _, p := range extra {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Engine{patterns: patterns}, nil
}

// Redact scans content for secrets and replaces each with a stable
// placeholder. Returns the sanitized text and the number of distinct
// secrets found.
func (e *Engine) Redact(content string) (string, int) {
	seen := make(map[string]struct{})
	var secrets []string

	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(content, -1) {
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			secrets = append(secrets, match)
		}
	}

	// Longer matches first, so an assignment that swallows a key is
	// replaced before the bare key it contains.
	sort.Slice(secrets, func(i, j int) bool {
		if len(secrets[i]) != len(secrets[j]) {
			return len(secrets[i]) > len(secrets[j])
		}
		return secrets[i] < secrets[j]
	})

	result := content
	applied := 0
	for _, secret := range secrets {
		if !strings.Contains(result, secret) {
			continue
		}
		result = strings.ReplaceAll(result, secret, placeholderFor(secret))
		applied++
	}
	return result, applied
}

// ContainsPlaceholder reports whether content already carries redaction
// placeholders. Suggestions whose optimized code references a
// placeholder must not be committed back to the repository.
func (e *Engine) ContainsPlaceholder(content string) bool {
	return strings.Contains(content, "<REDACTED:")
}

// placeholderFor derives a stable placeholder from the secret's hash so
// two occurrences of the same secret collapse to one placeholder.
func placeholderFor(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(hash[:])[:8])
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// OpenAI / Anthropic style API keys
		`sk-[a-zA-Z0-9\-]{20,}`,
		// AWS Access Key ID
		`AKIA[0-9A-Z]{16}`,
		// AWS secret keys assigned near an "aws" identifier
		`aws.{0,20}?['\"][0-9a-zA-Z/+]{40}['\"]`,
		// GitHub tokens (PAT, OAuth, server-to-server, refresh)
		`gh[posr]_[a-zA-Z0-9]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// JWTs
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// PEM private keys
		`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`,
		// Slack tokens
		`xox[baprs]-[a-zA-Z0-9\-]{10,}`,
		// Bearer tokens in headers or code
		`Bearer\s+[a-zA-Z0-9_\-\.]{16,}`,
		// Connection strings with inline credentials
		`[a-z][a-z0-9+]*://[^/\s:@]+:[^@\s]+@[^\s]+`,
		// Hardcoded password/secret assignments
		`(?i)(?:password|passwd|secret|api_key|apikey|access_token)\s*[:=]\s*['\"][^'\"]{8,}['\"]`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}

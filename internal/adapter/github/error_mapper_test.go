package github

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantType   httpx.ErrorType
		wantRetry  bool
	}{
		{
			name:       "unauthorized",
			statusCode: 401,
			body:       `{"message": "Bad credentials"}`,
			wantType:   httpx.ErrTypeAuthentication,
			wantRetry:  false,
		},
		{
			name:       "forbidden",
			statusCode: 403,
			body:       `{"message": "Resource not accessible by integration"}`,
			wantType:   httpx.ErrTypeAuthentication,
			wantRetry:  false,
		},
		{
			name:       "rate limited",
			statusCode: 429,
			body:       `{"message": "API rate limit exceeded"}`,
			wantType:   httpx.ErrTypeRateLimit,
			wantRetry:  true,
		},
		{
			name:       "not found",
			statusCode: 404,
			body:       `{"message": "Not Found"}`,
			wantType:   httpx.ErrTypeNotFound,
			wantRetry:  false,
		},
		{
			name:       "validation failed",
			statusCode: 422,
			body:       `{"message": "Validation Failed"}`,
			wantType:   httpx.ErrTypeInvalidRequest,
			wantRetry:  false,
		},
		{
			name:       "conflict",
			statusCode: 409,
			body:       `{"message": "Reference already exists"}`,
			wantType:   httpx.ErrTypeInvalidRequest,
			wantRetry:  false,
		},
		{
			name:       "internal server error",
			statusCode: 500,
			body:       `{"message": "Server Error"}`,
			wantType:   httpx.ErrTypeServiceUnavailable,
			wantRetry:  true,
		},
		{
			name:       "bad gateway",
			statusCode: 502,
			body:       ``,
			wantType:   httpx.ErrTypeServiceUnavailable,
			wantRetry:  true,
		},
		{
			name:       "unexpected status",
			statusCode: 418,
			body:       ``,
			wantType:   httpx.ErrTypeUnknown,
			wantRetry:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.statusCode, []byte(tt.body))
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.wantRetry, err.IsRetryable())
			assert.Equal(t, tt.statusCode, err.StatusCode)
			assert.Equal(t, "github", err.Provider)
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	t.Run("plain message", func(t *testing.T) {
		msg := parseErrorMessage(404, []byte(`{"message": "Not Found"}`))
		assert.Equal(t, "Not Found", msg)
	})

	t.Run("with field errors", func(t *testing.T) {
		body := `{"message": "Validation Failed", "errors": [{"resource": "PullRequest", "field": "base", "code": "invalid"}]}`
		msg := parseErrorMessage(422, []byte(body))
		assert.Contains(t, msg, "Validation Failed")
		assert.Contains(t, msg, "PullRequest.base: invalid")
	})

	t.Run("unparseable body falls back to status", func(t *testing.T) {
		msg := parseErrorMessage(502, []byte("<html>Bad Gateway</html>"))
		assert.Equal(t, "HTTP 502", msg)
	})
}

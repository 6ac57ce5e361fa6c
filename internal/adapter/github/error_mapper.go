package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
)

const providerName = "github"

// MapHTTPError maps GitHub API HTTP status codes to typed httpx.Error.
// This allows reuse of the shared retry logic and error handling.
func MapHTTPError(statusCode int, body []byte) *httpx.Error {
	message := parseErrorMessage(statusCode, body)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &httpx.Error{
			Type:       httpx.ErrTypeAuthentication,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}

	case http.StatusTooManyRequests:
		return &httpx.Error{
			Type:       httpx.ErrTypeRateLimit,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   providerName,
		}

	case http.StatusNotFound:
		return &httpx.Error{
			Type:       httpx.ErrTypeNotFound,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}

	case http.StatusConflict, http.StatusUnprocessableEntity:
		return &httpx.Error{
			Type:       httpx.ErrTypeInvalidRequest,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}

	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable:
		return &httpx.Error{
			Type:       httpx.ErrTypeServiceUnavailable,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   providerName,
		}

	default:
		return &httpx.Error{
			Type:       httpx.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  statusCode >= 500,
			Provider:   providerName,
		}
	}
}

// parseErrorMessage extracts a user-friendly error message from GitHub's
// response body, falling back to the bare status code.
func parseErrorMessage(statusCode int, body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return fmt.Sprintf("HTTP %d", statusCode)
	}

	if len(errResp.Errors) == 0 {
		return errResp.Message
	}

	details := make([]string, 0, len(errResp.Errors))
	for _, e := range errResp.Errors {
		switch {
		case e.Message != "":
			details = append(details, e.Message)
		case e.Field != "":
			details = append(details, fmt.Sprintf("%s.%s: %s", e.Resource, e.Field, e.Code))
		}
	}
	if len(details) == 0 {
		return errResp.Message
	}
	return fmt.Sprintf("%s (%s)", errResp.Message, strings.Join(details, "; "))
}

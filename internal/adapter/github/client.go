package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
)

const (
	defaultBaseURL        = "https://api.github.com"
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	apiVersion            = "2022-11-28"
)

// Client is an HTTP client for the GitHub REST API. All calls retry
// transient failures with exponential backoff and map error responses
// to typed httpx errors.
type Client struct {
	tokens     TokenSource
	baseURL    string
	httpClient *http.Client
	retryConf  httpx.RetryConfig
}

// NewClient creates a new GitHub API client authenticating through the
// given token source.
func NewClient(tokens TokenSource) *Client {
	return &Client{
		tokens:     tokens,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf: httpx.RetryConfig{
			MaxRetries:     defaultMaxRetries,
			InitialBackoff: defaultInitialBackoff,
			MaxBackoff:     8 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// SetBaseURL sets a custom base URL (for testing or GitHub Enterprise).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimSuffix(url, "/")
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetMaxRetries sets the maximum number of retry attempts.
func (c *Client) SetMaxRetries(maxRetries int) {
	c.retryConf.MaxRetries = maxRetries
}

// SetInitialBackoff sets the initial backoff duration for retries.
func (c *Client) SetInitialBackoff(backoff time.Duration) {
	c.retryConf.InitialBackoff = backoff
}

// GetPullRequest fetches a single pull request. Repo is the full
// "owner/name" identifier.
func (c *Client) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	var pr apiPullRequest
	path := fmt.Sprintf("repos/%s/pulls/%d", repo, number)
	if err := c.doJSON(ctx, "GET", path, nil, &pr); err != nil {
		return nil, err
	}
	mapped := mapPullRequest(pr)
	return &mapped, nil
}

// ListPullRequests lists pull requests for a repository. State is one of
// "open", "closed", or "all"; empty defaults to "open".
func (c *Client) ListPullRequests(ctx context.Context, repo, state string) ([]PullRequest, error) {
	if state == "" {
		state = "open"
	}
	var raw []apiPullRequest
	path := fmt.Sprintf("repos/%s/pulls?state=%s&per_page=100", repo, url.QueryEscape(state))
	if err := c.doJSON(ctx, "GET", path, nil, &raw); err != nil {
		return nil, err
	}
	prs := make([]PullRequest, len(raw))
	for i, pr := range raw {
		prs[i] = mapPullRequest(pr)
	}
	return prs, nil
}

// GetChangedFiles lists the files touched by a pull request.
func (c *Client) GetChangedFiles(ctx context.Context, repo string, number int) ([]ChangedFile, error) {
	var raw []apiChangedFile
	path := fmt.Sprintf("repos/%s/pulls/%d/files?per_page=100", repo, number)
	if err := c.doJSON(ctx, "GET", path, nil, &raw); err != nil {
		return nil, err
	}
	files := make([]ChangedFile, len(raw))
	for i, f := range raw {
		files[i] = ChangedFile{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Changes:   f.Changes,
			Patch:     f.Patch,
		}
	}
	return files, nil
}

// GetFileContent fetches the decoded content of a file at the given ref.
func (c *Client) GetFileContent(ctx context.Context, repo, path, ref string) (string, error) {
	var content apiContent
	apiPath := fmt.Sprintf("repos/%s/contents/%s", repo, escapePath(path))
	if ref != "" {
		apiPath += "?ref=" + url.QueryEscape(ref)
	}
	if err := c.doJSON(ctx, "GET", apiPath, nil, &content); err != nil {
		return "", err
	}
	if content.Type != "" && content.Type != "file" {
		return "", fmt.Errorf("path %s is a %s, not a file", path, content.Type)
	}

	// The contents API base64-encodes file bodies with embedded newlines.
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode content of %s: %w", path, err)
	}
	return string(decoded), nil
}

// CreateBranch creates a branch pointing at the given commit SHA.
func (c *Client) CreateBranch(ctx context.Context, repo, name, fromSHA string) error {
	body := createRefRequest{
		Ref: "refs/heads/" + name,
		SHA: fromSHA,
	}
	path := fmt.Sprintf("repos/%s/git/refs", repo)
	return c.doJSON(ctx, "POST", path, body, nil)
}

// CreateOrUpdateFile commits a file to a branch through the contents
// API. FileSHA is the blob SHA of the existing file; leave it empty when
// creating a new file.
func (c *Client) CreateOrUpdateFile(ctx context.Context, repo, path, branch, message, content, fileSHA string) error {
	body := putContentsRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		Branch:  branch,
		SHA:     fileSHA,
	}
	apiPath := fmt.Sprintf("repos/%s/contents/%s", repo, escapePath(path))
	return c.doJSON(ctx, "PUT", apiPath, body, nil)
}

// CreatePullRequest opens a pull request from head into base.
func (c *Client) CreatePullRequest(ctx context.Context, repo, title, body, head, base string) (*PullRequest, error) {
	req := createPullRequestBody{
		Title: title,
		Body:  body,
		Head:  head,
		Base:  base,
	}
	var pr apiPullRequest
	path := fmt.Sprintf("repos/%s/pulls", repo)
	if err := c.doJSON(ctx, "POST", path, req, &pr); err != nil {
		return nil, err
	}
	mapped := mapPullRequest(pr)
	return &mapped, nil
}

// CreateComment posts an issue comment on a pull request.
func (c *Client) CreateComment(ctx context.Context, repo string, number int, body string) (*Comment, error) {
	req := createCommentRequest{Body: body}
	var raw apiComment
	path := fmt.Sprintf("repos/%s/issues/%d/comments", repo, number)
	if err := c.doJSON(ctx, "POST", path, req, &raw); err != nil {
		return nil, err
	}
	return &Comment{ID: raw.ID, Body: raw.Body, HTMLURL: raw.HTMLURL}, nil
}

// ListBranches lists the repository's branches with their tip commits.
func (c *Client) ListBranches(ctx context.Context, repo string) ([]Branch, error) {
	var raw []apiBranch
	path := fmt.Sprintf("repos/%s/branches?per_page=100", repo)
	if err := c.doJSON(ctx, "GET", path, nil, &raw); err != nil {
		return nil, err
	}
	branches := make([]Branch, len(raw))
	for i, b := range raw {
		branches[i] = Branch{Name: b.Name, SHA: b.Commit.SHA}
	}
	return branches, nil
}

// doJSON executes one API call with retry. The request body is marshaled
// to JSON when non-nil; the response body is decoded into out when
// out is non-nil. Error responses are mapped to typed httpx errors so
// the retry loop can distinguish transient from permanent failures.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var jsonData []byte
	if body != nil {
		var err error
		jsonData, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	fullURL := c.baseURL + "/" + path

	var respBody []byte
	err := httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		token, tokenErr := c.tokens.Token(ctx)
		if tokenErr != nil {
			return &httpx.Error{
				Type:      httpx.ErrTypeAuthentication,
				Message:   tokenErr.Error(),
				Retryable: false,
				Provider:  providerName,
			}
		}

		var reader io.Reader
		if jsonData != nil {
			reader = bytes.NewReader(jsonData)
		}
		req, reqErr := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if reqErr != nil {
			return &httpx.Error{
				Type:      httpx.ErrTypeUnknown,
				Message:   reqErr.Error(),
				Retryable: false,
				Provider:  providerName,
			}
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		if jsonData != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, callErr := c.httpClient.Do(req)
		if callErr != nil {
			// Could be timeout or network error
			return &httpx.Error{
				Type:      httpx.ErrTypeTimeout,
				Message:   callErr.Error(),
				Retryable: true,
				Provider:  providerName,
			}
		}
		defer resp.Body.Close()

		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &httpx.Error{
				Type:      httpx.ErrTypeUnknown,
				Message:   fmt.Sprintf("HTTP %d (failed to read response: %v)", resp.StatusCode, readErr),
				Retryable: resp.StatusCode >= 500,
				Provider:  providerName,
			}
		}

		if resp.StatusCode >= 400 {
			return MapHTTPError(resp.StatusCode, bodyBytes)
		}

		respBody = bodyBytes
		return nil
	}, c.retryConf)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// escapePath escapes each segment of a repository file path while
// preserving the separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

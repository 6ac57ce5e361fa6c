package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(NewStaticTokenSource("test-token"))
	client.SetBaseURL(server.URL)
	client.SetMaxRetries(2)
	client.SetInitialBackoff(time.Millisecond)
	return client, server
}

func TestGetPullRequest(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/repos/acme/widgets/pulls/42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       int64(987654),
			"number":   42,
			"state":    "open",
			"title":    "Speed up report generation",
			"html_url": "https://github.com/acme/widgets/pull/42",
			"user":     map[string]string{"login": "devon"},
			"head":     map[string]string{"ref": "feature/reports", "sha": "abc123"},
			"base":     map[string]string{"ref": "main", "sha": "def456"},
		})
	}))

	pr, err := client.GetPullRequest(context.Background(), "acme/widgets", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(987654), pr.ID)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "Speed up report generation", pr.Title)
	assert.Equal(t, "devon", pr.Author)
	assert.Equal(t, "abc123", pr.HeadSHA)
	assert.Equal(t, "def456", pr.BaseSHA)
}

func TestGetPullRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": int64(1), "number": 7})
	}))

	pr, err := client.GetPullRequest(context.Background(), "acme/widgets", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetPullRequestDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Bad credentials"}`))
	}))

	_, err := client.GetPullRequest(context.Background(), "acme/widgets", 1)
	require.Error(t, err)

	var httpErr *httpx.Error
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, httpx.ErrTypeAuthentication, httpErr.Type)
	assert.Contains(t, httpErr.Message, "Bad credentials")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetPullRequestNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))

	_, err := client.GetPullRequest(context.Background(), "acme/widgets", 999)
	var httpErr *httpx.Error
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, httpx.ErrTypeNotFound, httpErr.Type)
	assert.False(t, httpErr.IsRetryable())
}

func TestGetChangedFiles(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/pulls/5/files", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"filename": "pkg/report.py", "status": "modified", "additions": 10, "deletions": 3, "changes": 13},
			{"filename": "README.md", "status": "added", "additions": 5, "deletions": 0, "changes": 5},
		})
	}))

	files, err := client.GetChangedFiles(context.Background(), "acme/widgets", 5)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "pkg/report.py", files[0].Filename)
	assert.Equal(t, "modified", files[0].Status)
	assert.Equal(t, 13, files[0].Changes)
}

func TestGetFileContentDecodesBase64(t *testing.T) {
	source := "def main():\n    pass\n"
	// GitHub wraps base64 content with embedded newlines.
	encoded := base64.StdEncoding.EncodeToString([]byte(source))
	wrapped := encoded[:10] + "\n" + encoded[10:] + "\n"

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/contents/src/main.py", r.URL.Path)
		assert.Equal(t, "abc123", r.URL.Query().Get("ref"))
		json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"encoding": "base64",
			"content":  wrapped,
		})
	}))

	content, err := client.GetFileContent(context.Background(), "acme/widgets", "src/main.py", "abc123")
	require.NoError(t, err)
	assert.Equal(t, source, content)
}

func TestGetFileContentRejectsDirectories(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"type": "dir"})
	}))

	_, err := client.GetFileContent(context.Background(), "acme/widgets", "src", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a file")
}

func TestCreateBranch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/repos/acme/widgets/git/refs", r.URL.Path)

		var req createRefRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refs/heads/optimize/pr-42", req.Ref)
		assert.Equal(t, "abc123", req.SHA)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ref": "refs/heads/optimize/pr-42"}`))
	}))

	err := client.CreateBranch(context.Background(), "acme/widgets", "optimize/pr-42", "abc123")
	require.NoError(t, err)
}

func TestCreateOrUpdateFileEncodesContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/repos/acme/widgets/contents/src/main.py", r.URL.Path)

		var req putContentsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, decErr := base64.StdEncoding.DecodeString(req.Content)
		require.NoError(t, decErr)
		assert.Equal(t, "optimized body", string(decoded))
		assert.Equal(t, "optimize/pr-42", req.Branch)
		assert.Equal(t, "blob-sha", req.SHA)

		w.Write([]byte(`{}`))
	}))

	err := client.CreateOrUpdateFile(context.Background(), "acme/widgets",
		"src/main.py", "optimize/pr-42", "apply optimizations", "optimized body", "blob-sha")
	require.NoError(t, err)
}

func TestCreatePullRequest(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createPullRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Apply optimizations for #42", req.Title)
		assert.Equal(t, "optimize/pr-42", req.Head)
		assert.Equal(t, "feature/reports", req.Base)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": int64(5555), "number": 43, "html_url": "https://github.com/acme/widgets/pull/43",
		})
	}))

	pr, err := client.CreatePullRequest(context.Background(), "acme/widgets",
		"Apply optimizations for #42", "details", "optimize/pr-42", "feature/reports")
	require.NoError(t, err)
	assert.Equal(t, 43, pr.Number)
}

func TestCreateComment(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/issues/42/comments", r.URL.Path)

		var req createCommentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "## Optimization summary", req.Body)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": int64(777), "body": req.Body})
	}))

	comment, err := client.CreateComment(context.Background(), "acme/widgets", 42, "## Optimization summary")
	require.NoError(t, err)
	assert.Equal(t, int64(777), comment.ID)
}

func TestListBranches(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"name": "main", "commit": map[string]string{"sha": "aaa"}},
			{"name": "develop", "commit": map[string]string{"sha": "bbb"}},
		})
	}))

	branches, err := client.ListBranches(context.Background(), "acme/widgets")
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "main", branches[0].Name)
	assert.Equal(t, "bbb", branches[1].SHA)
}

func TestDoJSONTokenFailureIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := NewClient(NewStaticTokenSource(""))
	client.SetBaseURL(server.URL)
	client.SetMaxRetries(2)
	client.SetInitialBackoff(time.Millisecond)

	_, err := client.GetPullRequest(context.Background(), "acme/widgets", 1)
	require.Error(t, err)

	var httpErr *httpx.Error
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, httpx.ErrTypeAuthentication, httpErr.Type)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

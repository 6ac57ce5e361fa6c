package pipeline

import (
	"context"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
)

// RemotePullRequest is the pipeline's view of an upstream pull request.
type RemotePullRequest struct {
	ID      int64
	Number  int
	State   string
	Title   string
	URL     string
	Author  string
	HeadRef string
	HeadSHA string
	BaseRef string
	BaseSHA string
}

// RemoteFile is one file touched by the upstream pull request.
type RemoteFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Changes   int
}

// RemoteComment is a posted summary comment.
type RemoteComment struct {
	ID  int64
	URL string
}

// RepoClient is the outbound port to the code host. The GitHub adapter
// implements it; tests substitute fakes.
type RepoClient interface {
	GetPullRequest(ctx context.Context, repo string, number int) (RemotePullRequest, error)
	GetChangedFiles(ctx context.Context, repo string, number int) ([]RemoteFile, error)
	GetFileContent(ctx context.Context, repo, path, ref string) (string, error)
	CreateBranch(ctx context.Context, repo, name, fromSHA string) error
	CreateOrUpdateFile(ctx context.Context, repo, path, branch, message, content, fileSHA string) error
	CreatePullRequest(ctx context.Context, repo, title, body, head, base string) (RemotePullRequest, error)
	CreateComment(ctx context.Context, repo string, number int, body string) (RemoteComment, error)
}

// Optimizer is the outbound port to the configured optimization backend.
type Optimizer interface {
	BackendName() string
	OptimizeFile(ctx context.Context, pr *domain.PullRequest, file *domain.PRFile, content string) (optimize.FileResult, error)
}

// Redactor scrubs secrets from file content before it reaches a backend.
type Redactor interface {
	Redact(content string) (redacted string, found int)
}

// Logger provides structured logging for the pipeline. The orchestrator
// logs stage boundaries and failures with structured fields.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// nopLogger keeps the orchestrator free of nil checks at call sites.
type nopLogger struct{}

func (nopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
func (nopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (nopLogger) LogError(context.Context, string, map[string]interface{})   {}

package github

import (
	"context"

	"github.com/bkyoung/pr-optimizer/internal/usecase/pipeline"
)

// API is the client surface the pipeline consumes. Both Client and
// MockClient satisfy it.
type API interface {
	GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)
	ListPullRequests(ctx context.Context, repo, state string) ([]PullRequest, error)
	GetChangedFiles(ctx context.Context, repo string, number int) ([]ChangedFile, error)
	GetFileContent(ctx context.Context, repo, path, ref string) (string, error)
	CreateBranch(ctx context.Context, repo, name, fromSHA string) error
	CreateOrUpdateFile(ctx context.Context, repo, path, branch, message, content, fileSHA string) error
	CreatePullRequest(ctx context.Context, repo, title, body, head, base string) (*PullRequest, error)
	CreateComment(ctx context.Context, repo string, number int, body string) (*Comment, error)
	ListBranches(ctx context.Context, repo string) ([]Branch, error)
}

// Bridge adapts the GitHub client to the pipeline's RepoClient port.
type Bridge struct {
	api API
}

// NewBridge wraps a GitHub client for use by the pipeline.
func NewBridge(api API) *Bridge {
	return &Bridge{api: api}
}

func (b *Bridge) GetPullRequest(ctx context.Context, repo string, number int) (pipeline.RemotePullRequest, error) {
	pr, err := b.api.GetPullRequest(ctx, repo, number)
	if err != nil {
		return pipeline.RemotePullRequest{}, err
	}
	return toRemotePullRequest(*pr), nil
}

func (b *Bridge) GetChangedFiles(ctx context.Context, repo string, number int) ([]pipeline.RemoteFile, error) {
	changed, err := b.api.GetChangedFiles(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	files := make([]pipeline.RemoteFile, len(changed))
	for i, f := range changed {
		files[i] = pipeline.RemoteFile{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Changes:   f.Changes,
		}
	}
	return files, nil
}

func (b *Bridge) GetFileContent(ctx context.Context, repo, path, ref string) (string, error) {
	return b.api.GetFileContent(ctx, repo, path, ref)
}

func (b *Bridge) CreateBranch(ctx context.Context, repo, name, fromSHA string) error {
	return b.api.CreateBranch(ctx, repo, name, fromSHA)
}

func (b *Bridge) CreateOrUpdateFile(ctx context.Context, repo, path, branch, message, content, fileSHA string) error {
	return b.api.CreateOrUpdateFile(ctx, repo, path, branch, message, content, fileSHA)
}

func (b *Bridge) CreatePullRequest(ctx context.Context, repo, title, body, head, base string) (pipeline.RemotePullRequest, error) {
	pr, err := b.api.CreatePullRequest(ctx, repo, title, body, head, base)
	if err != nil {
		return pipeline.RemotePullRequest{}, err
	}
	return toRemotePullRequest(*pr), nil
}

func (b *Bridge) CreateComment(ctx context.Context, repo string, number int, body string) (pipeline.RemoteComment, error) {
	comment, err := b.api.CreateComment(ctx, repo, number, body)
	if err != nil {
		return pipeline.RemoteComment{}, err
	}
	return pipeline.RemoteComment{ID: comment.ID, URL: comment.HTMLURL}, nil
}

func toRemotePullRequest(pr PullRequest) pipeline.RemotePullRequest {
	return pipeline.RemotePullRequest{
		ID:      pr.ID,
		Number:  pr.Number,
		State:   pr.State,
		Title:   pr.Title,
		URL:     pr.HTMLURL,
		Author:  pr.Author,
		HeadRef: pr.HeadRef,
		HeadSHA: pr.HeadSHA,
		BaseRef: pr.BaseRef,
		BaseSHA: pr.BaseSHA,
	}
}

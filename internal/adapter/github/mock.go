package github

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an in-memory stand-in for the GitHub API used in local
// development and end-to-end runs without network access. Data is
// deterministic; mutating calls are recorded so callers can inspect
// what would have been sent. Never wire it in production.
type MockClient struct {
	mu sync.Mutex

	nextCommentID int64

	// Recorded mutations, in call order.
	Comments     []Comment
	Branches     []Branch
	FileCommits  []MockFileCommit
	CreatedPulls []PullRequest
}

// MockFileCommit records one CreateOrUpdateFile call.
type MockFileCommit struct {
	Path    string
	Branch  string
	Message string
	Content string
}

// NewMockClient creates a mock client with canned repository data.
func NewMockClient() *MockClient {
	return &MockClient{nextCommentID: 9000}
}

const mockFileContent = `def find_duplicates(items):
    duplicates = []
    for i in range(len(items)):
        for j in range(len(items)):
            if i != j and items[i] == items[j]:
                if items[i] not in duplicates:
                    duplicates.append(items[i])
    return duplicates


def build_report(rows):
    report = ""
    for row in rows:
        report = report + str(row) + "\n"
    return report
`

func (m *MockClient) GetPullRequest(_ context.Context, repo string, number int) (*PullRequest, error) {
	return &PullRequest{
		ID:      int64(1000 + number),
		Number:  number,
		State:   "open",
		Title:   fmt.Sprintf("Mock pull request #%d", number),
		Body:    "Generated by the mock GitHub client.",
		HTMLURL: fmt.Sprintf("https://github.test/%s/pull/%d", repo, number),
		Author:  "octocat",
		HeadRef: "feature/mock",
		HeadSHA: "a3f5c1d2e4b6978a0b1c2d3e4f5a6b7c8d9e0f1a",
		BaseRef: "main",
		BaseSHA: "0f1e2d3c4b5a69788796a5b4c3d2e1f0a9b8c7d6",
	}, nil
}

func (m *MockClient) ListPullRequests(ctx context.Context, repo, _ string) ([]PullRequest, error) {
	pr, err := m.GetPullRequest(ctx, repo, 1)
	if err != nil {
		return nil, err
	}
	return []PullRequest{*pr}, nil
}

func (m *MockClient) GetChangedFiles(_ context.Context, _ string, _ int) ([]ChangedFile, error) {
	return []ChangedFile{
		{Filename: "analytics/report.py", Status: "modified", Additions: 14, Deletions: 2, Changes: 16},
		{Filename: "docs/report.md", Status: "added", Additions: 5, Deletions: 0, Changes: 5},
	}, nil
}

func (m *MockClient) GetFileContent(_ context.Context, _, path, _ string) (string, error) {
	if path == "docs/report.md" {
		return "# Report\n\nMock documentation.\n", nil
	}
	return mockFileContent, nil
}

func (m *MockClient) CreateBranch(_ context.Context, _, name, fromSHA string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Branches = append(m.Branches, Branch{Name: name, SHA: fromSHA})
	return nil
}

func (m *MockClient) CreateOrUpdateFile(_ context.Context, _, path, branch, message, content, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FileCommits = append(m.FileCommits, MockFileCommit{
		Path:    path,
		Branch:  branch,
		Message: message,
		Content: content,
	})
	return nil
}

func (m *MockClient) CreatePullRequest(_ context.Context, repo, title, body, head, base string) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr := PullRequest{
		ID:      int64(2000 + len(m.CreatedPulls)),
		Number:  100 + len(m.CreatedPulls),
		State:   "open",
		Title:   title,
		Body:    body,
		HTMLURL: fmt.Sprintf("https://github.test/%s/pull/%d", repo, 100+len(m.CreatedPulls)),
		Author:  "pr-optimizer[bot]",
		HeadRef: head,
		BaseRef: base,
	}
	m.CreatedPulls = append(m.CreatedPulls, pr)
	return &pr, nil
}

func (m *MockClient) CreateComment(_ context.Context, repo string, number int, body string) (*Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCommentID++
	comment := Comment{
		ID:      m.nextCommentID,
		Body:    body,
		HTMLURL: fmt.Sprintf("https://github.test/%s/pull/%d#issuecomment-%d", repo, number, m.nextCommentID),
	}
	m.Comments = append(m.Comments, comment)
	return &comment, nil
}

func (m *MockClient) ListBranches(_ context.Context, _ string) ([]Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	branches := []Branch{
		{Name: "main", SHA: "0f1e2d3c4b5a69788796a5b4c3d2e1f0a9b8c7d6"},
		{Name: "feature/mock", SHA: "a3f5c1d2e4b6978a0b1c2d3e4f5a6b7c8d9e0f1a"},
	}
	branches = append(branches, m.Branches...)
	return branches, nil
}

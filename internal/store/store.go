// Package store defines the persistence ports for tracked pull requests,
// their files, and generated suggestions. The dashboard, API, and CLI
// layers consume the read queries; only the pipeline orchestrator writes
// lifecycle status.
package store

import (
	"context"
	"errors"

	"github.com/bkyoung/pr-optimizer/internal/domain"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// PullRequestStore persists tracked pull requests.
type PullRequestStore interface {
	// CreateOrUpdate upserts keyed on (external_id, repo_name). All
	// required attributes must be present; a missing field is a
	// validation error, not a partial write.
	CreateOrUpdate(ctx context.Context, in domain.PullRequestInput) (domain.PullRequest, error)

	// UpdateStatus writes the lifecycle status for one row. The write is
	// idempotent: re-running the same transition is safe.
	UpdateStatus(ctx context.Context, id int64, status domain.Status) error

	GetByID(ctx context.Context, id int64) (domain.PullRequest, error)
	GetByRepoAndNumber(ctx context.Context, repo string, number int) (domain.PullRequest, error)
	List(ctx context.Context, limit int) ([]domain.PullRequest, error)
}

// FileStore persists the files touched by a pull request.
type FileStore interface {
	// UpsertFile is keyed on (pull_request_id, filename); repeated
	// fetches update counts and content in place.
	UpsertFile(ctx context.Context, file domain.PRFile) (domain.PRFile, error)

	GetFileByID(ctx context.Context, id int64) (domain.PRFile, error)
	ListFilesByPullRequest(ctx context.Context, pullRequestID int64) ([]domain.PRFile, error)
}

// FeedbackStats aggregates human review outcomes per opportunity type.
// The feedback-driven backend consumes these counts.
type FeedbackStats struct {
	OpportunityType string
	Accepted        int
	Rejected        int
}

// SuggestionStore persists generated suggestions. Writes from the
// adapter are append-only; status and comment-id updates are
// single-writer per suggestion row.
type SuggestionStore interface {
	SaveSuggestions(ctx context.Context, suggestions []domain.Suggestion) error

	GetSuggestionByID(ctx context.Context, id string) (domain.Suggestion, error)
	ListSuggestionsByPullRequest(ctx context.Context, pullRequestID int64) ([]domain.Suggestion, error)
	ListSuggestionsByFile(ctx context.Context, fileID int64) ([]domain.Suggestion, error)

	// MarkCommented attaches the posted comment id and flips status to
	// "commented".
	MarkCommented(ctx context.Context, id string, commentID int64) error

	// RecordReview flips status to accepted or rejected and records the
	// feedback row consumed by the feedback-driven backend.
	RecordReview(ctx context.Context, id string, accepted bool) error

	GetFeedbackStats(ctx context.Context, opportunityType string) (FeedbackStats, error)
}

// Store is the full persistence surface backed by one database.
type Store interface {
	PullRequestStore
	FileStore
	SuggestionStore

	Close() error
}

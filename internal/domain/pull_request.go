package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a tracked pull request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusOptimized  Status = "optimized"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusOptimized, StatusCompleted, StatusError, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further pipeline stages may run from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

// CanTransition reports whether the lifecycle state machine permits
// moving from s to next. Only the pipeline orchestrator writes status;
// this is the single source of truth for allowed moves.
func (s Status) CanTransition(next Status) bool {
	if next == StatusClosed {
		// The upstream PR can close at any time. Closing a closed PR is
		// treated as a permitted no-op so repeated webhooks stay idempotent.
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusOptimized || next == StatusError
	case StatusOptimized:
		return next == StatusCompleted || next == StatusError
	case StatusError:
		// A fresh webhook or manual trigger re-enters pending.
		return next == StatusPending
	case StatusCompleted:
		return next == StatusPending
	}
	return false
}

// PullRequest is the durable record of a tracked upstream pull request.
// Identity is (ExternalID, RepoName); rows are never hard-deleted.
type PullRequest struct {
	ID         int64
	ExternalID int64
	Number     int
	RepoName   string
	Title      string
	URL        string
	HeadSHA    string
	BaseSHA    string
	Author     string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PullRequestInput captures the attributes required to create or update
// a pull request record. All fields are required; a missing field is a
// validation error, not a partial write.
type PullRequestInput struct {
	ExternalID int64
	Number     int
	RepoName   string
	Title      string
	URL        string
	HeadSHA    string
	BaseSHA    string
	Author     string
}

// ErrValidation marks rejected writes caused by bad input rather than
// infrastructure failure.
var ErrValidation = errors.New("validation error")

// Validate checks that every required identity and attribute field is set.
func (in PullRequestInput) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: pull request %s is required", ErrValidation, field)
	}
	if in.ExternalID == 0 {
		return missing("external_id")
	}
	if in.Number == 0 {
		return missing("number")
	}
	if in.RepoName == "" {
		return missing("repo_name")
	}
	if in.URL == "" {
		return missing("url")
	}
	if in.HeadSHA == "" {
		return missing("head_sha")
	}
	if in.BaseSHA == "" {
		return missing("base_sha")
	}
	if in.Author == "" {
		return missing("author")
	}
	return nil
}

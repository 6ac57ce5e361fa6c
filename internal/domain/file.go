package domain

import "time"

const (
	FileStatusAdded    = "added"
	FileStatusModified = "modified"
	FileStatusRemoved  = "removed"
)

// PRFile is the durable record of one file touched by a pull request.
// Identity is (PullRequestID, Filename); repeated fetches upsert.
type PRFile struct {
	ID            int64
	PullRequestID int64
	Filename      string
	ChangeStatus  string
	Language      string // empty when the extension is unrecognized
	Content       string // fetched lazily, only for supported languages
	Additions     int
	Deletions     int
	Changes       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasContent reports whether file content was fetched and stored.
func (f PRFile) HasContent() bool {
	return f.Content != ""
}

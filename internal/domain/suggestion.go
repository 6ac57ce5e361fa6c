package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Suggestion severities, lowest to highest.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Suggestion review statuses.
const (
	SuggestionPending   = "pending"
	SuggestionCommented = "commented"
	SuggestionAccepted  = "accepted"
	SuggestionRejected  = "rejected"
)

// Suggestion is one proposed code replacement within a specific file and
// line range of a pull request.
type Suggestion struct {
	ID                string
	PullRequestID     int64
	FileID            int64
	OpportunityType   string
	Location          Location
	Description       string
	Severity          string
	OriginalCode      string
	OptimizedCode     string
	Explanation       string
	Status            string
	ExternalCommentID int64 // zero until a comment is posted
	Metrics           map[string]float64
	CreatedAt         time.Time
}

// SuggestionInput captures the information required to create a Suggestion.
type SuggestionInput struct {
	PullRequestID   int64
	FileID          int64
	OpportunityType string
	Location        Location
	Description     string
	Severity        string
	OriginalCode    string
	OptimizedCode   string
	Explanation     string
	Metrics         map[string]float64
}

// Validate rejects malformed suggestions before they reach the store.
func (in SuggestionInput) Validate() error {
	if in.OriginalCode == "" {
		return fmt.Errorf("%w: suggestion original code is required", ErrValidation)
	}
	if in.OptimizedCode == "" {
		return fmt.Errorf("%w: suggestion optimized code is required", ErrValidation)
	}
	if in.Location.StartLine < 1 || in.Location.EndLine < in.Location.StartLine {
		return fmt.Errorf("%w: suggestion location %q is not a valid line range", ErrValidation, in.Location)
	}
	switch in.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrValidation, in.Severity)
	}
	return nil
}

// NewSuggestion constructs a Suggestion with a deterministic ID so that
// re-running the same backend over the same content never duplicates rows.
func NewSuggestion(in SuggestionInput) Suggestion {
	return Suggestion{
		ID:              hashSuggestion(in),
		PullRequestID:   in.PullRequestID,
		FileID:          in.FileID,
		OpportunityType: in.OpportunityType,
		Location:        in.Location,
		Description:     in.Description,
		Severity:        in.Severity,
		OriginalCode:    in.OriginalCode,
		OptimizedCode:   in.OptimizedCode,
		Explanation:     in.Explanation,
		Status:          SuggestionPending,
		Metrics:         in.Metrics,
	}
}

func hashSuggestion(in SuggestionInput) string {
	payload := fmt.Sprintf("%d|%d|%s|%s|%s|%s|%s",
		in.PullRequestID,
		in.FileID,
		in.Location,
		in.OpportunityType,
		in.Severity,
		in.OriginalCode,
		in.OptimizedCode,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

package optimize

import (
	"context"
	"fmt"
	"strings"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/usecase/patch"
)

// BackendKind identifies a configured optimization backend.
type BackendKind string

const (
	BackendMock        BackendKind = "mock"
	BackendFeedback    BackendKind = "feedback"
	BackendOpportunity BackendKind = "opportunity"
)

// Valid reports whether the kind names a known backend.
func (k BackendKind) Valid() bool {
	switch k {
	case BackendMock, BackendFeedback, BackendOpportunity:
		return true
	}
	return false
}

// Request carries one file to a backend. Content is the redacted file
// body; backends must never see the raw content.
type Request struct {
	PullRequest *domain.PullRequest
	File        *domain.PRFile
	Content     string
}

// RawSuggestion is a backend's unnormalized output for one opportunity.
type RawSuggestion struct {
	OpportunityType string
	StartLine       int
	EndLine         int
	Description     string
	Severity        string
	OriginalCode    string
	OptimizedCode   string
	Explanation     string
}

// Backend produces optimization suggestions for a single file. All
// backends satisfy the same contract so the pipeline stays agnostic of
// which one is configured.
type Backend interface {
	Name() string
	Optimize(ctx context.Context, req Request) ([]RawSuggestion, error)
}

// Adapter normalizes backend output into domain suggestion inputs. It
// drops malformed raw suggestions, attaches deterministic estimated
// metrics, and guarantees at least one suggestion per file so every
// analyzed file leaves a trace.
type Adapter struct {
	backend Backend
}

// NewAdapter wraps a backend. The backend must not be nil.
func NewAdapter(backend Backend) (*Adapter, error) {
	if backend == nil {
		return nil, fmt.Errorf("optimization backend is required")
	}
	return &Adapter{backend: backend}, nil
}

// BackendName returns the wrapped backend's name for logging.
func (a *Adapter) BackendName() string {
	return a.backend.Name()
}

// FileResult is the adapter's answer for one file: the validated
// suggestion inputs, the content with those suggestions applied, a
// one-line explanation, and aggregate metrics derived from the count
// and severity mix of the whole result.
type FileResult struct {
	Suggestions   []domain.SuggestionInput
	OptimizedCode string
	Explanation   string
	Metrics       map[string]float64
}

// OptimizeFile runs the backend over one file and returns the
// normalized result. Content must already be redacted. A backend error
// fails the call; a backend that returns nothing usable yields the
// placeholder suggestion instead.
func (a *Adapter) OptimizeFile(ctx context.Context, pr *domain.PullRequest, file *domain.PRFile, content string) (FileResult, error) {
	if pr == nil || file == nil {
		return FileResult{}, fmt.Errorf("%w: optimization request requires a pull request and file", domain.ErrValidation)
	}
	req := Request{PullRequest: pr, File: file, Content: content}

	raw, err := a.backend.Optimize(ctx, req)
	if err != nil {
		return FileResult{}, fmt.Errorf("backend %s failed on %s: %w", a.backend.Name(), req.File.Filename, err)
	}

	inputs := make([]domain.SuggestionInput, 0, len(raw))
	for _, r := range raw {
		in := a.normalize(req, r)
		if err := in.Validate(); err != nil {
			continue
		}
		inputs = append(inputs, in)
	}

	if len(inputs) == 0 {
		inputs = append(inputs, placeholderSuggestion(req))
	}

	return FileResult{
		Suggestions:   inputs,
		OptimizedCode: applyAll(content, inputs),
		Explanation:   summarize(inputs),
		Metrics:       AggregateMetrics(inputs),
	}, nil
}

// applyAll renders the file content with every suggestion applied in
// place. Suggestions whose target range no longer matches are skipped
// by the applier.
func applyAll(content string, inputs []domain.SuggestionInput) string {
	suggestions := make([]domain.Suggestion, 0, len(inputs))
	for _, in := range inputs {
		suggestions = append(suggestions, domain.NewSuggestion(in))
	}
	applied, _ := patch.Apply(content, suggestions)
	return applied
}

func summarize(inputs []domain.SuggestionInput) string {
	if len(inputs) == 1 {
		return inputs[0].Explanation
	}
	return fmt.Sprintf("Identified %d optimization suggestions", len(inputs))
}

func (a *Adapter) normalize(req Request, r RawSuggestion) domain.SuggestionInput {
	lineCount := countLines(req.Content)

	start, end := r.StartLine, r.EndLine
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}
	if lineCount > 0 && end > lineCount {
		end = lineCount
		if start > end {
			start = end
		}
	}

	severity := strings.ToLower(strings.TrimSpace(r.Severity))
	switch severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
	default:
		severity = domain.SeverityLow
	}

	opportunityType := strings.TrimSpace(r.OpportunityType)
	if opportunityType == "" {
		opportunityType = "general"
	}

	return domain.SuggestionInput{
		PullRequestID:   req.PullRequest.ID,
		FileID:          req.File.ID,
		OpportunityType: opportunityType,
		Location:        domain.Location{StartLine: start, EndLine: end},
		Description:     strings.TrimSpace(r.Description),
		Severity:        severity,
		OriginalCode:    r.OriginalCode,
		OptimizedCode:   r.OptimizedCode,
		Explanation:     strings.TrimSpace(r.Explanation),
		Metrics:         EstimateMetrics(severity, opportunityType),
	}
}

// placeholderSuggestion records that a file was analyzed and nothing
// actionable was found. Original and optimized code are both the first
// line so the patch applier treats it as a no-op.
func placeholderSuggestion(req Request) domain.SuggestionInput {
	firstLine := req.Content
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	if firstLine == "" {
		firstLine = " "
	}

	return domain.SuggestionInput{
		PullRequestID:   req.PullRequest.ID,
		FileID:          req.File.ID,
		OpportunityType: "no_opportunity",
		Location:        domain.Location{StartLine: 1, EndLine: 1},
		Description:     fmt.Sprintf("No optimization opportunities identified in %s", req.File.Filename),
		Severity:        domain.SeverityLow,
		OriginalCode:    firstLine,
		OptimizedCode:   firstLine,
		Explanation:     "The file was analyzed and no actionable improvements were found.",
		Metrics:         EstimateMetrics(domain.SeverityLow, "no_opportunity"),
	}
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

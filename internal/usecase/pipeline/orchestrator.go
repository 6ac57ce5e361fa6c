// Package pipeline runs the optimization flow for one tracked pull
// request: fetch changed files, run the configured backend over each
// supported file, persist suggestions, and report back to the upstream
// pull request. The orchestrator is the only writer of lifecycle status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/store"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
)

const defaultFileWorkers = 4

// Options tune the orchestrator's behavior.
type Options struct {
	// CachedMode reuses stored file content instead of fetching from
	// the code host. Useful for replaying the pipeline locally; must
	// not be enabled in production.
	CachedMode bool

	// CreateFollowUpPR opens a branch with the applied suggestions and
	// a pull request against the optimized PR's head branch.
	CreateFollowUpPR bool

	// MaxFileWorkers bounds concurrent backend calls. Zero means the
	// default.
	MaxFileWorkers int
}

// Deps captures the orchestrator's outbound dependencies.
type Deps struct {
	Repo        RepoClient
	Optimizer   Optimizer
	Pulls       store.PullRequestStore
	Files       store.FileStore
	Suggestions store.SuggestionStore
	Redactor    Redactor // optional
	Logger      Logger   // optional
	Options     Options
}

// Orchestrator drives one pipeline run end to end.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator wires the orchestrator dependencies.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Repo == nil {
		return nil, errors.New("repo client is required")
	}
	if deps.Optimizer == nil {
		return nil, errors.New("optimizer is required")
	}
	if deps.Pulls == nil || deps.Files == nil || deps.Suggestions == nil {
		return nil, errors.New("pull request, file, and suggestion stores are required")
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Options.MaxFileWorkers <= 0 {
		deps.Options.MaxFileWorkers = defaultFileWorkers
	}
	return &Orchestrator{deps: deps}, nil
}

// Run executes the pipeline for one tracked pull request. The row's
// current status decides whether a run may start; anything but a clean
// pending entry is skipped without error so replayed webhooks stay
// harmless. Stage failures move the row to the error status and return
// the stage's error.
func (o *Orchestrator) Run(ctx context.Context, id int64) error {
	pr, err := o.deps.Pulls.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load pull request %d: %w", id, err)
	}

	if !pr.Status.CanTransition(domain.StatusProcessing) {
		o.deps.Logger.LogInfo(ctx, "pipeline run skipped", map[string]interface{}{
			"pull_request_id": pr.ID,
			"repo":            pr.RepoName,
			"status":          string(pr.Status),
		})
		return nil
	}
	if err := o.setStatus(ctx, &pr, domain.StatusProcessing); err != nil {
		return err
	}

	o.deps.Logger.LogInfo(ctx, "pipeline run started", map[string]interface{}{
		"pull_request_id": pr.ID,
		"repo":            pr.RepoName,
		"number":          pr.Number,
		"backend":         o.deps.Optimizer.BackendName(),
	})

	files, err := o.collectFiles(ctx, pr)
	if err != nil {
		return o.failStage(ctx, &pr, "fetch_files", err)
	}

	suggestions := o.optimizeFiles(ctx, pr, files)
	if len(suggestions) == 0 && len(files) > 0 {
		suggestions = append(suggestions, domain.NewSuggestion(runPlaceholder(pr, files[0])))
	}

	if err := o.deps.Suggestions.SaveSuggestions(ctx, suggestions); err != nil {
		return o.failStage(ctx, &pr, "persist_suggestions", err)
	}

	if err := o.setStatus(ctx, &pr, domain.StatusOptimized); err != nil {
		return err
	}

	if err := o.report(ctx, pr, files, suggestions); err != nil {
		return o.failStage(ctx, &pr, "report", err)
	}

	if o.deps.Options.CreateFollowUpPR {
		if err := o.openFollowUp(ctx, pr, files, suggestions); err != nil {
			// A failed follow-up PR does not undo the optimization work.
			o.deps.Logger.LogWarning(ctx, "follow-up pull request failed", map[string]interface{}{
				"pull_request_id": pr.ID,
				"error":           err.Error(),
			})
		}
	}

	if err := o.setStatus(ctx, &pr, domain.StatusCompleted); err != nil {
		return err
	}

	o.deps.Logger.LogInfo(ctx, "pipeline run completed", map[string]interface{}{
		"pull_request_id": pr.ID,
		"files":           len(files),
		"suggestions":     len(suggestions),
	})
	return nil
}

// MarkClosed moves the row to closed. Closing is permitted from every
// state and repeat closes are no-ops.
func (o *Orchestrator) MarkClosed(ctx context.Context, pr domain.PullRequest) error {
	if err := o.deps.Pulls.UpdateStatus(ctx, pr.ID, domain.StatusClosed); err != nil {
		return fmt.Errorf("failed to close pull request %d: %w", pr.ID, err)
	}
	o.deps.Logger.LogInfo(ctx, "pull request closed", map[string]interface{}{
		"pull_request_id": pr.ID,
		"repo":            pr.RepoName,
	})
	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, pr *domain.PullRequest, next domain.Status) error {
	if err := o.deps.Pulls.UpdateStatus(ctx, pr.ID, next); err != nil {
		return fmt.Errorf("failed to move pull request %d to %s: %w", pr.ID, next, err)
	}
	pr.Status = next
	return nil
}

func (o *Orchestrator) failStage(ctx context.Context, pr *domain.PullRequest, stage string, err error) error {
	o.deps.Logger.LogError(ctx, "pipeline stage failed", map[string]interface{}{
		"pull_request_id": pr.ID,
		"repo":            pr.RepoName,
		"stage":           stage,
		"error":           err.Error(),
	})
	if statusErr := o.deps.Pulls.UpdateStatus(ctx, pr.ID, domain.StatusError); statusErr != nil {
		o.deps.Logger.LogError(ctx, "failed to record error status", map[string]interface{}{
			"pull_request_id": pr.ID,
			"error":           statusErr.Error(),
		})
	}
	return fmt.Errorf("stage %s failed for pull request %d: %w", stage, pr.ID, err)
}

// collectFiles fetches the changed files and their content and persists
// them. Removed files and files in unsupported languages are stored
// without content and skipped by the optimize stage.
func (o *Orchestrator) collectFiles(ctx context.Context, pr domain.PullRequest) ([]domain.PRFile, error) {
	if o.deps.Options.CachedMode {
		files, err := o.deps.Files.ListFilesByPullRequest(ctx, pr.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list cached files: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("cached mode requires previously stored files for pull request %d", pr.ID)
		}
		return files, nil
	}

	changed, err := o.deps.Repo.GetChangedFiles(ctx, pr.RepoName, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changed files: %w", err)
	}

	files := make([]domain.PRFile, 0, len(changed))
	for _, cf := range changed {
		file := domain.PRFile{
			PullRequestID: pr.ID,
			Filename:      cf.Filename,
			ChangeStatus:  cf.Status,
			Language:      domain.DetectLanguage(cf.Filename),
			Additions:     cf.Additions,
			Deletions:     cf.Deletions,
			Changes:       cf.Changes,
		}

		if cf.Status != domain.FileStatusRemoved && file.Language != "" {
			content, err := o.deps.Repo.GetFileContent(ctx, pr.RepoName, cf.Filename, pr.HeadSHA)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch content of %s: %w", cf.Filename, err)
			}
			file.Content = content
		} else {
			o.deps.Logger.LogInfo(ctx, "file skipped", map[string]interface{}{
				"pull_request_id": pr.ID,
				"filename":        cf.Filename,
				"status":          cf.Status,
				"language":        file.Language,
			})
		}

		stored, err := o.deps.Files.UpsertFile(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("failed to store file %s: %w", cf.Filename, err)
		}
		files = append(files, stored)
	}
	return files, nil
}

// optimizeFiles fans the backend out over every file with content. A
// backend failure drops that file's results and the run carries on with
// the remaining files; panics in a worker surface the same way instead
// of killing the process.
func (o *Orchestrator) optimizeFiles(ctx context.Context, pr domain.PullRequest, files []domain.PRFile) []domain.Suggestion {
	var candidates []domain.PRFile
	for _, f := range files {
		if f.HasContent() {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	type fileResult struct {
		filename string
		res      optimize.FileResult
		err      error
	}

	var wg sync.WaitGroup
	resultsChan := make(chan fileResult, len(candidates))
	sem := make(chan struct{}, o.deps.Options.MaxFileWorkers)

	for _, file := range candidates {
		wg.Add(1)
		go func(file domain.PRFile) {
			defer func() {
				if r := recover(); r != nil {
					resultsChan <- fileResult{filename: file.Filename, err: fmt.Errorf("backend panicked: %v", r)}
				}
				wg.Done()
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			content := file.Content
			if o.deps.Redactor != nil {
				redacted, found := o.deps.Redactor.Redact(content)
				if found > 0 {
					o.deps.Logger.LogWarning(ctx, "secrets redacted before backend call", map[string]interface{}{
						"pull_request_id": pr.ID,
						"filename":        file.Filename,
						"secrets":         found,
					})
				}
				content = redacted
			}

			res, err := o.deps.Optimizer.OptimizeFile(ctx, &pr, &file, content)
			resultsChan <- fileResult{filename: file.Filename, res: res, err: err}
		}(file)
	}

	wg.Wait()
	close(resultsChan)

	var suggestions []domain.Suggestion
	for result := range resultsChan {
		if result.err != nil {
			o.deps.Logger.LogWarning(ctx, "file optimization failed", map[string]interface{}{
				"pull_request_id": pr.ID,
				"filename":        result.filename,
				"error":           result.err.Error(),
			})
			continue
		}
		o.deps.Logger.LogInfo(ctx, "file optimized", map[string]interface{}{
			"pull_request_id":   pr.ID,
			"filename":          result.filename,
			"suggestions":       result.res.Metrics[optimize.MetricSuggestionCount],
			"estimated_speedup": result.res.Metrics[optimize.MetricSpeedup],
		})
		for _, in := range result.res.Suggestions {
			suggestions = append(suggestions, domain.NewSuggestion(in))
		}
	}
	return suggestions
}

// runPlaceholder records that a run analyzed the changed files and
// produced nothing, so every finished run leaves at least one
// suggestion row behind.
func runPlaceholder(pr domain.PullRequest, file domain.PRFile) domain.SuggestionInput {
	return domain.SuggestionInput{
		PullRequestID:   pr.ID,
		FileID:          file.ID,
		OpportunityType: "no_opportunity",
		Location:        domain.Location{StartLine: 1, EndLine: 1},
		Description:     "No optimization opportunities identified in this pull request",
		Severity:        domain.SeverityLow,
		OriginalCode:    " ",
		OptimizedCode:   " ",
		Explanation:     "The changed files were analyzed and no actionable improvements were found.",
		Metrics:         optimize.EstimateMetrics(domain.SeverityLow, "no_opportunity"),
	}
}

// report posts the summary comment and marks each suggestion commented.
func (o *Orchestrator) report(ctx context.Context, pr domain.PullRequest, files []domain.PRFile, suggestions []domain.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	summary := BuildSummary(pr, files, suggestions)
	comment, err := o.deps.Repo.CreateComment(ctx, pr.RepoName, pr.Number, summary)
	if err != nil {
		return fmt.Errorf("failed to post summary comment: %w", err)
	}

	for _, s := range suggestions {
		if err := o.deps.Suggestions.MarkCommented(ctx, s.ID, comment.ID); err != nil {
			return fmt.Errorf("failed to mark suggestion %s commented: %w", s.ID, err)
		}
	}

	o.deps.Logger.LogInfo(ctx, "summary comment posted", map[string]interface{}{
		"pull_request_id": pr.ID,
		"comment_id":      comment.ID,
		"suggestions":     len(suggestions),
	})
	return nil
}

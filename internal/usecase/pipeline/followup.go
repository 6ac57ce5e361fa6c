package pipeline

import (
	"context"
	"fmt"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/usecase/patch"
)

// openFollowUp applies the run's suggestions file by file, commits the
// patched files to a new branch cut from the optimized PR's head, and
// opens a pull request against the head branch. Files where nothing
// applied cleanly are left untouched; a run where nothing applied at
// all opens no PR.
func (o *Orchestrator) openFollowUp(ctx context.Context, pr domain.PullRequest, files []domain.PRFile, suggestions []domain.Suggestion) error {
	byFile := make(map[int64][]domain.Suggestion)
	for _, s := range suggestions {
		byFile[s.FileID] = append(byFile[s.FileID], s)
	}

	type patchedFile struct {
		file    domain.PRFile
		content string
		applied int
	}

	var patched []patchedFile
	totalApplied := 0
	for _, file := range files {
		if !file.HasContent() {
			continue
		}
		newContent, results := patch.Apply(file.Content, byFile[file.ID])
		applied := patch.AppliedCount(results)
		for _, r := range results {
			if !r.Applied && r.Reason != "" {
				o.deps.Logger.LogInfo(ctx, "suggestion not applied", map[string]interface{}{
					"pull_request_id": pr.ID,
					"filename":        file.Filename,
					"suggestion_id":   r.Suggestion.ID,
					"reason":          r.Reason,
				})
			}
		}
		if applied == 0 {
			continue
		}
		patched = append(patched, patchedFile{file: file, content: newContent, applied: applied})
		totalApplied += applied
	}

	if len(patched) == 0 {
		o.deps.Logger.LogInfo(ctx, "no suggestions applied cleanly, skipping follow-up pull request", map[string]interface{}{
			"pull_request_id": pr.ID,
		})
		return nil
	}

	branch := fmt.Sprintf("optimize/pr-%d", pr.Number)
	if err := o.deps.Repo.CreateBranch(ctx, pr.RepoName, branch, pr.HeadSHA); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}

	for _, p := range patched {
		message := fmt.Sprintf("Apply %d optimization(s) to %s", p.applied, p.file.Filename)
		if err := o.deps.Repo.CreateOrUpdateFile(ctx, pr.RepoName, p.file.Filename, branch, message, p.content, ""); err != nil {
			return fmt.Errorf("failed to commit %s: %w", p.file.Filename, err)
		}
	}

	// The stored record keeps SHAs, not ref names; the remote PR
	// supplies the head branch the follow-up targets.
	remote, err := o.deps.Repo.GetPullRequest(ctx, pr.RepoName, pr.Number)
	if err != nil {
		return fmt.Errorf("failed to resolve head branch: %w", err)
	}

	title := fmt.Sprintf("Apply optimizations for #%d", pr.Number)
	body := fmt.Sprintf(
		"Applies %d suggestion(s) from the optimization run on #%d. Review each change before merging.",
		totalApplied, pr.Number,
	)
	followUp, err := o.deps.Repo.CreatePullRequest(ctx, pr.RepoName, title, body, branch, remote.HeadRef)
	if err != nil {
		return fmt.Errorf("failed to open follow-up pull request: %w", err)
	}

	o.deps.Logger.LogInfo(ctx, "follow-up pull request opened", map[string]interface{}{
		"pull_request_id": pr.ID,
		"follow_up":       followUp.Number,
		"branch":          branch,
		"applied":         totalApplied,
	})
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/store"
)

const defaultRunTimeout = 10 * time.Minute

// Runner launches pipeline runs in the background so the webhook
// handler can acknowledge delivery immediately. Each run gets a bounded
// timeout detached from the request context; panics are contained.
type Runner struct {
	orch    *Orchestrator
	pulls   store.PullRequestStore
	repo    RepoClient
	logger  Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// NewRunner wires a runner around the orchestrator. Timeout zero means
// the default.
func NewRunner(orch *Orchestrator, pulls store.PullRequestStore, repo RepoClient, logger Logger, timeout time.Duration) *Runner {
	if logger == nil {
		logger = nopLogger{}
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &Runner{
		orch:    orch,
		pulls:   pulls,
		repo:    repo,
		logger:  logger,
		timeout: timeout,
	}
}

// Trigger starts a background run for an already-tracked pull request.
func (r *Runner) Trigger(pr domain.PullRequest) {
	r.launch(fmt.Sprintf("%s#%d", pr.RepoName, pr.Number), func(ctx context.Context) error {
		return r.orch.Run(ctx, pr.ID)
	})
}

// TriggerByNumber fetches the pull request from the code host, tracks
// it, and starts a run. Used for comment commands on pull requests that
// were opened before the service started listening.
func (r *Runner) TriggerByNumber(repo string, number int) {
	r.launch(fmt.Sprintf("%s#%d", repo, number), func(ctx context.Context) error {
		pr, err := r.track(ctx, repo, number)
		if err != nil {
			return err
		}
		return r.orch.Run(ctx, pr.ID)
	})
}

// RunByNumber fetches, tracks, and runs the pipeline synchronously.
// Used by the one-shot command path. Returns the row as it stands
// after the run.
func (r *Runner) RunByNumber(ctx context.Context, repo string, number int) (domain.PullRequest, error) {
	pr, err := r.track(ctx, repo, number)
	if err != nil {
		return domain.PullRequest{}, err
	}
	if err := r.orch.Run(ctx, pr.ID); err != nil {
		return pr, err
	}
	return r.pulls.GetByID(ctx, pr.ID)
}

func (r *Runner) track(ctx context.Context, repo string, number int) (domain.PullRequest, error) {
	remote, err := r.repo.GetPullRequest(ctx, repo, number)
	if err != nil {
		return domain.PullRequest{}, fmt.Errorf("failed to fetch pull request %s#%d: %w", repo, number, err)
	}

	pr, err := r.pulls.CreateOrUpdate(ctx, domain.PullRequestInput{
		ExternalID: remote.ID,
		Number:     remote.Number,
		RepoName:   repo,
		Title:      remote.Title,
		URL:        remote.URL,
		HeadSHA:    remote.HeadSHA,
		BaseSHA:    remote.BaseSHA,
		Author:     remote.Author,
	})
	if err != nil {
		return domain.PullRequest{}, fmt.Errorf("failed to track pull request %s#%d: %w", repo, number, err)
	}
	return pr, nil
}

// MarkClosed records the upstream close. Runs synchronously: a close is
// one status write, not a pipeline run.
func (r *Runner) MarkClosed(ctx context.Context, pr domain.PullRequest) error {
	return r.orch.MarkClosed(ctx, pr)
}

// Wait blocks until all in-flight runs finish. Called on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) launch(label string, run func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.LogError(context.Background(), "pipeline run panicked", map[string]interface{}{
					"target": label,
					"panic":  fmt.Sprint(rec),
				})
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := run(ctx); err != nil {
			r.logger.LogError(ctx, "pipeline run failed", map[string]interface{}{
				"target": label,
				"error":  err.Error(),
			})
		}
	}()
}

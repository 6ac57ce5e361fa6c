package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/usecase/skip"
)

// Outcome describes what the dispatcher did with a delivery. Deliveries
// that match no route are acknowledged and ignored, never rejected.
type Outcome string

const (
	OutcomeTriggered Outcome = "triggered"
	OutcomeClosed    Outcome = "closed"
	OutcomeIgnored   Outcome = "ignored"
)

// Result is the dispatcher's answer for one webhook delivery.
type Result struct {
	Outcome     Outcome
	PullRequest *domain.PullRequest
}

// PullRequests is the store surface the dispatcher needs.
type PullRequests interface {
	CreateOrUpdate(ctx context.Context, in domain.PullRequestInput) (domain.PullRequest, error)
	GetByRepoAndNumber(ctx context.Context, repo string, number int) (domain.PullRequest, error)
}

// Runner is the pipeline surface the dispatcher needs. Trigger variants
// return immediately; the run happens on a detached background task so
// the webhook response can be acknowledged fast.
type Runner interface {
	Trigger(pr domain.PullRequest)
	TriggerByNumber(repo string, number int)
	MarkClosed(ctx context.Context, pr domain.PullRequest) error
}

// Options tune the dispatcher's routing table.
type Options struct {
	// TriggerLabel gates the pull_request "labeled" route. Empty disables it.
	TriggerLabel string
	// CommandToken is the comment prefix that triggers a run, e.g. "/optimize".
	CommandToken string
}

// Dispatcher routes parsed webhook deliveries to the pull request store
// and the pipeline runner. It is a pure routing table keyed by
// (eventType, action); it owns no goroutines and writes no status.
type Dispatcher struct {
	pulls  PullRequests
	runner Runner
	opts   Options
	logger httpx.Logger
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(pulls PullRequests, runner Runner, opts Options, logger httpx.Logger) *Dispatcher {
	if opts.CommandToken == "" {
		opts.CommandToken = "/optimize"
	}
	return &Dispatcher{pulls: pulls, runner: runner, opts: opts, logger: logger}
}

// Dispatch routes one delivery. A payload that cannot be parsed returns
// a validation error (the HTTP layer answers 422); unrecognized event
// types and actions return OutcomeIgnored with no error.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, payload []byte) (Result, error) {
	switch eventType {
	case EventPullRequest:
		return d.dispatchPullRequest(ctx, payload)
	case EventIssueComment:
		return d.dispatchIssueComment(ctx, payload)
	default:
		d.logIgnored(ctx, eventType, "")
		return Result{Outcome: OutcomeIgnored}, nil
	}
}

func (d *Dispatcher) dispatchPullRequest(ctx context.Context, payload []byte) (Result, error) {
	var event PullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return Result{}, fmt.Errorf("%w: unparseable pull_request payload: %v", domain.ErrValidation, err)
	}

	switch event.Action {
	case ActionOpened, ActionSynchronize:
		return d.upsertAndTrigger(ctx, event)

	case ActionLabeled:
		if d.opts.TriggerLabel == "" || event.Label.Name != d.opts.TriggerLabel {
			d.logIgnored(ctx, EventPullRequest, event.Action)
			return Result{Outcome: OutcomeIgnored}, nil
		}
		return d.upsertAndTrigger(ctx, event)

	case ActionClosed:
		pr, err := d.pulls.GetByRepoAndNumber(ctx, event.Repository.FullName, event.PullRequest.Number)
		if err != nil {
			// A close for a PR we never tracked needs no state change.
			d.logIgnored(ctx, EventPullRequest, event.Action)
			return Result{Outcome: OutcomeIgnored}, nil
		}
		if err := d.runner.MarkClosed(ctx, pr); err != nil {
			return Result{}, fmt.Errorf("mark pull request closed: %w", err)
		}
		return Result{Outcome: OutcomeClosed, PullRequest: &pr}, nil

	default:
		d.logIgnored(ctx, EventPullRequest, event.Action)
		return Result{Outcome: OutcomeIgnored}, nil
	}
}

func (d *Dispatcher) dispatchIssueComment(ctx context.Context, payload []byte) (Result, error) {
	var event IssueCommentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return Result{}, fmt.Errorf("%w: unparseable issue_comment payload: %v", domain.ErrValidation, err)
	}

	if event.Action != ActionCreated || event.Issue.PullRequest == nil {
		d.logIgnored(ctx, EventIssueComment, event.Action)
		return Result{Outcome: OutcomeIgnored}, nil
	}
	if !strings.HasPrefix(strings.TrimSpace(event.Comment.Body), d.opts.CommandToken) {
		d.logIgnored(ctx, EventIssueComment, event.Action)
		return Result{Outcome: OutcomeIgnored}, nil
	}

	repo := event.Repository.FullName
	number := event.Issue.Number

	// TriggerByNumber re-fetches the pull request and re-upserts it,
	// which resets the row to pending. A command on an already-finished
	// or failed PR therefore starts a fresh run instead of hitting the
	// replay guard.
	d.runner.TriggerByNumber(repo, number)

	if pr, err := d.pulls.GetByRepoAndNumber(ctx, repo, number); err == nil {
		return Result{Outcome: OutcomeTriggered, PullRequest: &pr}, nil
	}
	return Result{Outcome: OutcomeTriggered}, nil
}

func (d *Dispatcher) upsertAndTrigger(ctx context.Context, event PullRequestEvent) (Result, error) {
	if res := skip.Check(skip.CheckRequest{
		PRTitle:       event.PullRequest.Title,
		PRDescription: event.PullRequest.Body,
	}); res.ShouldSkip {
		d.logSkipped(ctx, event.Repository.FullName, event.PullRequest.Number, res.Reason)
		return Result{Outcome: OutcomeIgnored}, nil
	}

	in := domain.PullRequestInput{
		ExternalID: event.PullRequest.ID,
		Number:     event.PullRequest.Number,
		RepoName:   event.Repository.FullName,
		Title:      event.PullRequest.Title,
		URL:        event.PullRequest.URL,
		HeadSHA:    event.PullRequest.Head.SHA,
		BaseSHA:    event.PullRequest.Base.SHA,
		Author:     event.PullRequest.User.Login,
	}
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	pr, err := d.pulls.CreateOrUpdate(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("upsert pull request %s#%d: %w", in.RepoName, in.Number, err)
	}

	d.runner.Trigger(pr)
	return Result{Outcome: OutcomeTriggered, PullRequest: &pr}, nil
}

func (d *Dispatcher) logSkipped(ctx context.Context, repo string, number int, reason string) {
	if d.logger == nil {
		return
	}
	d.logger.LogInfo(ctx, "pull request opted out of optimization", map[string]interface{}{
		"repo":   repo,
		"number": number,
		"reason": reason,
	})
}

func (d *Dispatcher) logIgnored(ctx context.Context, eventType, action string) {
	if d.logger == nil {
		return
	}
	d.logger.LogInfo(ctx, "ignoring webhook delivery", map[string]interface{}{
		"event":  eventType,
		"action": action,
	})
}

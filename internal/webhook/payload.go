package webhook

// Event types and actions recognized by the dispatcher. Everything else
// is acknowledged and ignored.
const (
	EventPullRequest  = "pull_request"
	EventIssueComment = "issue_comment"

	ActionOpened      = "opened"
	ActionSynchronize = "synchronize"
	ActionLabeled     = "labeled"
	ActionClosed      = "closed"
	ActionCreated     = "created"
)

// PullRequestEvent mirrors the fields of the upstream pull_request event
// payload that the dispatcher consumes.
type PullRequestEvent struct {
	Action string `json:"action"`
	Label  struct {
		Name string `json:"name"`
	} `json:"label"`
	PullRequest struct {
		ID     int64  `json:"id"`
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		URL    string `json:"html_url"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			SHA string `json:"sha"`
		} `json:"base"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// IssueCommentEvent mirrors the fields of the upstream issue_comment
// event payload that the dispatcher consumes. Issue.PullRequest is only
// present when the parent issue is a pull request.
type IssueCommentEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number      int `json:"number"`
		PullRequest *struct {
			URL string `json:"url"`
		} `json:"pull_request"`
	} `json:"issue"`
	Comment struct {
		Body string `json:"body"`
	} `json:"comment"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

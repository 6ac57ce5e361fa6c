package github

// apiUser is the GitHub user object as it appears in API responses.
type apiUser struct {
	Login string `json:"login"`
}

// apiRef is one side of a pull request (head or base).
type apiRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// apiPullRequest is the GitHub pull request object. Only the fields the
// pipeline consumes are mapped.
type apiPullRequest struct {
	ID      int64   `json:"id"`
	Number  int     `json:"number"`
	State   string  `json:"state"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	HTMLURL string  `json:"html_url"`
	User    apiUser `json:"user"`
	Head    apiRef  `json:"head"`
	Base    apiRef  `json:"base"`
}

// apiChangedFile is one entry from the pull request files listing.
type apiChangedFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// apiContent is the repository contents object for a single file.
type apiContent struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
	Path     string `json:"path"`
}

// apiComment is an issue comment as returned by the API.
type apiComment struct {
	ID      int64  `json:"id"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// apiBranch is one entry from the branches listing.
type apiBranch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// createRefRequest creates a new git reference (branch).
type createRefRequest struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// putContentsRequest creates or updates a file through the contents API.
// Content must be base64-encoded. SHA is required when updating an
// existing file and omitted when creating a new one.
type putContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// createPullRequestBody opens a new pull request.
type createPullRequestBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// createCommentRequest posts an issue comment.
type createCommentRequest struct {
	Body string `json:"body"`
}

// errorResponse is GitHub's standard error body.
type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Resource string `json:"resource"`
		Field    string `json:"field"`
		Code     string `json:"code"`
		Message  string `json:"message"`
	} `json:"errors"`
	DocumentationURL string `json:"documentation_url"`
}

// installationTokenResponse is the body returned when minting an
// installation access token for a GitHub App.
type installationTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// PullRequest is the adapter-level view of a GitHub pull request.
type PullRequest struct {
	ID      int64
	Number  int
	State   string
	Title   string
	Body    string
	HTMLURL string
	Author  string
	HeadRef string
	HeadSHA string
	BaseRef string
	BaseSHA string
}

// ChangedFile describes one file touched by a pull request.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Changes   int
	Patch     string
}

// Comment is a posted issue comment.
type Comment struct {
	ID      int64
	Body    string
	HTMLURL string
}

// Branch is a repository branch with its tip commit.
type Branch struct {
	Name string
	SHA  string
}

func mapPullRequest(pr apiPullRequest) PullRequest {
	return PullRequest{
		ID:      pr.ID,
		Number:  pr.Number,
		State:   pr.State,
		Title:   pr.Title,
		Body:    pr.Body,
		HTMLURL: pr.HTMLURL,
		Author:  pr.User.Login,
		HeadRef: pr.Head.Ref,
		HeadSHA: pr.Head.SHA,
		BaseRef: pr.Base.Ref,
		BaseSHA: pr.Base.SHA,
	}
}

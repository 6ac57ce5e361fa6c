// Package skip provides opt-out trigger detection. Authors can exclude
// a pull request from optimization by including a trigger pattern in
// the PR title or description.
package skip

import (
	"regexp"
	"strings"
)

// skipTriggerPattern matches [skip optimization], [skip-optimization]
// or [no-optimize] (case-insensitive).
var skipTriggerPattern = regexp.MustCompile(`(?i)\[(skip[ -]optimization|no-optimize)\]`)

// ContainsSkipTrigger checks if text contains an opt-out trigger.
// Supported patterns:
//   - [skip optimization]
//   - [skip-optimization]
//   - [no-optimize]
//
// Matching is case-insensitive.
func ContainsSkipTrigger(text string) bool {
	return skipTriggerPattern.MatchString(text)
}

// CheckRequest contains the inputs to check for opt-out triggers.
type CheckRequest struct {
	PRTitle       string
	PRDescription string
	CommentBody   string
}

// CheckResult contains the result of checking for opt-out triggers.
type CheckResult struct {
	ShouldSkip bool
	Reason     string // where the trigger was found
}

// Check examines PR metadata for opt-out triggers. It checks in order:
// title, description, comment body. Returns the first match found.
func Check(req CheckRequest) CheckResult {
	if ContainsSkipTrigger(strings.TrimSpace(req.PRTitle)) {
		return CheckResult{ShouldSkip: true, Reason: "PR title"}
	}
	if ContainsSkipTrigger(req.PRDescription) {
		return CheckResult{ShouldSkip: true, Reason: "PR description"}
	}
	if ContainsSkipTrigger(req.CommentBody) {
		return CheckResult{ShouldSkip: true, Reason: "comment"}
	}
	return CheckResult{}
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bkyoung/pr-optimizer/internal/usecase/skip"
)

// ErrShouldOptimize is returned when no opt-out trigger is found,
// indicating the optimization should proceed. Use this as a sentinel
// error in CI workflows.
var ErrShouldOptimize = errors.New("should optimize")

// checkSkipCommand creates the check-skip subcommand.
// It checks PR metadata for opt-out triggers.
//
// Exit codes:
//   - 0: Opt-out trigger found, optimization should be skipped
//   - 1: No trigger, optimization should proceed
func checkSkipCommand() *cobra.Command {
	var prTitle string
	var prDescription string
	var commentBody string

	cmd := &cobra.Command{
		Use:   "check-skip",
		Short: "Check if a pull request opted out of optimization",
		Long: `Check PR metadata for opt-out triggers.

Supported trigger patterns:
  [skip optimization]
  [skip-optimization]
  [no-optimize]

Patterns are case-insensitive and can appear anywhere in the text.

Exit codes:
  0 - Trigger found, optimization should be skipped
  1 - No trigger, optimization should proceed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := skip.Check(skip.CheckRequest{
				PRTitle:       prTitle,
				PRDescription: prDescription,
				CommentBody:   commentBody,
			})

			if result.ShouldSkip {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "skip: %s\n", result.Reason)
				return nil // Exit 0
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "optimize: no opt-out trigger found")
			return ErrShouldOptimize // Exit 1
		},
	}

	cmd.Flags().StringVar(&prTitle, "pr-title", "", "PR title to check")
	cmd.Flags().StringVar(&prDescription, "pr-description", "", "PR description/body to check")
	cmd.Flags().StringVar(&commentBody, "comment", "", "Comment body to check")

	return cmd
}

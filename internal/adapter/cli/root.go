package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bkyoung/pr-optimizer/internal/domain"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Service defines the dependency required to run the serve command.
type Service interface {
	Run(ctx context.Context) error
}

// PipelineRunner defines the dependency required to run the optimize
// command: a synchronous fetch-track-optimize for one pull request.
type PipelineRunner interface {
	RunByNumber(ctx context.Context, repo string, number int) (domain.PullRequest, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Service     Service
	Runner      PipelineRunner
	Args        Arguments
	DefaultRepo string
	ListenAddr  string
	Version     string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "pro",
		Short: "Pull request optimization service",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(serveCommand(deps.Service, deps.ListenAddr))
	root.AddCommand(optimizeCommand(deps.Runner, deps.DefaultRepo))
	root.AddCommand(checkSkipCommand())

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func serveCommand(service Service, listenAddr string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if service == nil {
				return fmt.Errorf("server is not configured")
			}
			if listenAddr != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", listenAddr)
			}
			return service.Run(cmd.Context())
		},
	}
}

func optimizeCommand(runner PipelineRunner, defaultRepo string) *cobra.Command {
	var repository string
	var number int

	cmd := &cobra.Command{
		Use:   "optimize [number]",
		Short: "Run the optimization pipeline once for a pull request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if runner == nil {
				return fmt.Errorf("pipeline runner is not configured")
			}
			if len(args) > 0 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid pull request number %q", args[0])
				}
				number = parsed
			}
			if number <= 0 {
				return fmt.Errorf("pull request number not specified; pass as an argument or use --number")
			}
			if repository == "" {
				return fmt.Errorf("repository not specified; use --repo owner/name")
			}
			if !strings.Contains(repository, "/") {
				return fmt.Errorf("repository %q must be in owner/name form", repository)
			}

			pr, err := runner.RunByNumber(cmd.Context(), repository, number)
			if err != nil {
				return fmt.Errorf("optimization run for %s#%d failed: %w", repository, number, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "optimization run finished for %s#%d (status %s)\n",
				repository, number, pr.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&repository, "repo", defaultRepo, "Repository in owner/name form")
	cmd.Flags().IntVar(&number, "number", 0, "Pull request number (overrides positional)")

	return cmd
}

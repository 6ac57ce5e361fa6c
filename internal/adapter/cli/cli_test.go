package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/pr-optimizer/internal/adapter/cli"
	"github.com/bkyoung/pr-optimizer/internal/domain"
)

type fakeService struct {
	ran bool
	err error
}

func (f *fakeService) Run(ctx context.Context) error {
	f.ran = true
	return f.err
}

type fakeRunner struct {
	repo   string
	number int
	result domain.PullRequest
	err    error
}

func (f *fakeRunner) RunByNumber(_ context.Context, repo string, number int) (domain.PullRequest, error) {
	f.repo = repo
	f.number = number
	return f.result, f.err
}

func execute(t *testing.T, deps cli.Dependencies, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	deps.Args = cli.Arguments{OutWriter: &out, ErrWriter: &errOut}
	root := cli.NewRootCommand(deps)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, _, err := execute(t, cli.Dependencies{Version: "v1.2.3"}, "--version")
	assert.ErrorIs(t, err, cli.ErrVersionRequested)
	assert.Contains(t, out, "v1.2.3")
}

func TestVersionFlagDefaultsWhenUnset(t *testing.T) {
	out, _, err := execute(t, cli.Dependencies{}, "-v")
	assert.ErrorIs(t, err, cli.ErrVersionRequested)
	assert.Contains(t, out, "v0.0.0")
}

func TestRootWithoutArgsShowsHelp(t *testing.T) {
	out, _, err := execute(t, cli.Dependencies{})
	require.NoError(t, err)
	assert.Contains(t, out, "Pull request optimization service")
}

func TestServeRunsService(t *testing.T) {
	service := &fakeService{}
	_, _, err := execute(t, cli.Dependencies{Service: service}, "serve")
	require.NoError(t, err)
	assert.True(t, service.ran)
}

func TestServePropagatesError(t *testing.T) {
	service := &fakeService{err: errors.New("listen tcp: address in use")}
	_, _, err := execute(t, cli.Dependencies{Service: service}, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestServeWithoutServiceFails(t *testing.T) {
	_, _, err := execute(t, cli.Dependencies{}, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestOptimizeRunsPipeline(t *testing.T) {
	runner := &fakeRunner{result: domain.PullRequest{Status: domain.StatusCompleted}}

	out, _, err := execute(t, cli.Dependencies{Runner: runner}, "optimize", "42", "--repo", "acme/widgets")
	require.NoError(t, err)

	assert.Equal(t, "acme/widgets", runner.repo)
	assert.Equal(t, 42, runner.number)
	assert.Contains(t, out, "acme/widgets#42")
	assert.Contains(t, out, "completed")
}

func TestOptimizeNumberFlagOverridesDefault(t *testing.T) {
	runner := &fakeRunner{result: domain.PullRequest{Status: domain.StatusCompleted}}

	_, _, err := execute(t, cli.Dependencies{Runner: runner, DefaultRepo: "acme/widgets"}, "optimize", "--number", "7")
	require.NoError(t, err)
	assert.Equal(t, 7, runner.number)
	assert.Equal(t, "acme/widgets", runner.repo)
}

func TestOptimizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing number",
			args:    []string{"optimize", "--repo", "acme/widgets"},
			wantErr: "number not specified",
		},
		{
			name:    "missing repository",
			args:    []string{"optimize", "42"},
			wantErr: "repository not specified",
		},
		{
			name:    "malformed repository",
			args:    []string{"optimize", "42", "--repo", "widgets"},
			wantErr: "owner/name form",
		},
		{
			name:    "non-numeric positional",
			args:    []string{"optimize", "forty-two", "--repo", "acme/widgets"},
			wantErr: "invalid pull request number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, cli.Dependencies{Runner: &fakeRunner{}}, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOptimizePropagatesRunError(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("stage fetch failed")}

	_, _, err := execute(t, cli.Dependencies{Runner: runner}, "optimize", "42", "--repo", "acme/widgets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/widgets#42")
	assert.Contains(t, err.Error(), "stage fetch failed")
}

package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
)

func request(content string) optimize.Request {
	return optimize.Request{
		PullRequest: &domain.PullRequest{ID: 1},
		File:        &domain.PRFile{ID: 2, Filename: "report.py"},
		Content:     content,
	}
}

func TestOptimizeIsDeterministic(t *testing.T) {
	backend := NewBackend()
	content := "a = 1\nb = 2\nc = 3\nd = 4\n"

	first, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)
	second, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, "general", first[0].OpportunityType)
	assert.Equal(t, 1, first[0].StartLine)
	assert.Equal(t, 3, first[0].EndLine)
	assert.Equal(t, "a = 1\nb = 2\nc = 3", first[0].OriginalCode)
}

func TestOptimizeFlagsNestedLoops(t *testing.T) {
	backend := NewBackend()
	content := "for i in items:\n    for j in items:\n        work(i, j)\n"

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	nested := suggestions[1]
	assert.Equal(t, "nested_loop", nested.OpportunityType)
	assert.Equal(t, domain.SeverityHigh, nested.Severity)
	assert.Equal(t, 1, nested.StartLine)
	assert.Equal(t, 2, nested.EndLine)
}

func TestOptimizeEmptyContent(t *testing.T) {
	backend := NewBackend()
	suggestions, err := backend.Optimize(context.Background(), request(""))
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestOptimizeShortFile(t *testing.T) {
	backend := NewBackend()
	suggestions, err := backend.Optimize(context.Background(), request("only line\n"))
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, 1, suggestions[0].EndLine)
	assert.Equal(t, "only line", suggestions[0].OriginalCode)
}

package opportunity

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

func TestOptimizeDetectsNestedLoop(t *testing.T) {
	backend := NewBackend()
	content := `def find_duplicates(items):
    seen = []
    for i in range(len(items)):
        for j in range(len(items)):
            if i != j and items[i] == items[j]:
                seen.append(items[i])
    return seen
`

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)

	byType := groupByType(suggestions)
	require.Contains(t, byType, "nested_loop")

	nested := byType["nested_loop"][0]
	assert.Equal(t, domain.SeverityHigh, nested.Severity)
	assert.Equal(t, 3, nested.StartLine)
	assert.Equal(t, 6, nested.EndLine)
	assert.Contains(t, nested.OriginalCode, "for j in range")
	assert.NotEqual(t, nested.OriginalCode, nested.OptimizedCode)
}

func TestOptimizeDetectsStringConcatInLoop(t *testing.T) {
	backend := NewBackend()
	content := `report = ""
for row in rows:
    report += str(row) + "\n"
`

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)

	byType := groupByType(suggestions)
	require.Contains(t, byType, "string_concatenation")
	concat := byType["string_concatenation"][0]
	assert.Equal(t, 2, concat.StartLine)
	assert.Equal(t, 3, concat.EndLine)
	assert.Equal(t, domain.SeverityMedium, concat.Severity)
}

func TestIsSelfAppend(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{name: "plus equals", line: `    report += str(row) + "\n"`, want: true},
		{name: "expanded form", line: `    report = report + line`, want: true},
		{name: "assign from other variable", line: `    report = header + line`, want: false},
		{name: "plain assignment", line: `    report = build(row)`, want: false},
		{name: "no assignment", line: `    process(row)`, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isSelfAppend(tc.line))
		})
	}
}

func TestOptimizeDetectsExpandedConcatForm(t *testing.T) {
	backend := NewBackend()
	content := `report = ""
for row in rows:
    report = report + str(row) + "\n"
`

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)

	byType := groupByType(suggestions)
	require.Contains(t, byType, "string_concatenation")
	assert.Equal(t, 2, byType["string_concatenation"][0].StartLine)
}

func TestOptimizeDetectsRepeatedComputation(t *testing.T) {
	backend := NewBackend()
	content := "for i in range(len(items)):\n    process(items[i])\n"

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)

	byType := groupByType(suggestions)
	require.Contains(t, byType, "repeated_computation")
	assert.Equal(t, 1, byType["repeated_computation"][0].StartLine)
}

func TestOptimizeRewritesKeysLookup(t *testing.T) {
	backend := NewBackend()
	content := "if name in registry.keys():\n    handle(name)\n"

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)

	byType := groupByType(suggestions)
	require.Contains(t, byType, "inefficient_lookup")
	lookup := byType["inefficient_lookup"][0]
	assert.Equal(t, "if name in registry.keys():", lookup.OriginalCode)
	assert.Equal(t, "if name in registry:", lookup.OptimizedCode)
}

func TestOptimizeCleanContentFindsNothing(t *testing.T) {
	backend := NewBackend()
	content := "def add(a, b):\n    return a + b\n"

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestOptimizeOutputIsOrderedAndStable(t *testing.T) {
	backend := NewBackend()
	content := `if k in d.keys():
    pass
for i in range(len(xs)):
    for j in range(len(xs)):
        pass
`

	first, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)
	second, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].StartLine, first[i].StartLine)
	}
}

func groupByType(suggestions []optimize.RawSuggestion) map[string][]optimize.RawSuggestion {
	byType := make(map[string][]optimize.RawSuggestion)
	for _, s := range suggestions {
		byType[s.OpportunityType] = append(byType[s.OpportunityType], s)
	}
	return byType
}

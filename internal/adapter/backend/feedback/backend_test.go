package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/store"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
)

type fakeChat struct {
	response string
	err      error
	lastReq  openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.response}},
		},
	}, nil
}

type fakeStats struct {
	stats map[string]store.FeedbackStats
}

func (f *fakeStats) GetFeedbackStats(_ context.Context, opportunityType string) (store.FeedbackStats, error) {
	s, ok := f.stats[opportunityType]
	if !ok {
		return store.FeedbackStats{OpportunityType: opportunityType}, nil
	}
	return s, nil
}

func request(content string) optimize.Request {
	return optimize.Request{
		PullRequest: &domain.PullRequest{ID: 1},
		File:        &domain.PRFile{ID: 2, Filename: "report.py", Language: "python"},
		Content:     content,
	}
}

func TestOptimizeReturnsModelSuggestion(t *testing.T) {
	chat := &fakeChat{
		response: `{"optimized_code": "return sum(xs)", "description": "Use the builtin", "explanation": "sum is linear and C-backed.", "severity": "medium"}`,
	}
	backend, err := NewBackend(chat, nil, "test-model")
	require.NoError(t, err)

	content := "total = 0\nfor x in xs:\n    total += x\n"
	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, 1, s.StartLine)
	assert.Equal(t, 3, s.EndLine, "small files are analyzed whole")
	assert.Equal(t, "return sum(xs)", s.OptimizedCode)
	assert.Equal(t, "Use the builtin", s.Description)
	assert.Equal(t, "medium", s.Severity)
	assert.Equal(t, strings.TrimRight(content, "\n"), s.OriginalCode)

	assert.Equal(t, "test-model", chat.lastReq.Model)
	assert.Zero(t, chat.lastReq.Temperature)
}

func TestOptimizeParsesFencedOutput(t *testing.T) {
	chat := &fakeChat{
		response: "Here you go:\n```json\n{\"optimized_code\": \"pass\", \"severity\": \"low\"}\n```",
	}
	backend, err := NewBackend(chat, nil, "")
	require.NoError(t, err)

	suggestions, err := backend.Optimize(context.Background(), request("x = 1\n"))
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "pass", suggestions[0].OptimizedCode)
}

func TestOptimizeUnchangedRegionMeansNoSuggestion(t *testing.T) {
	content := "x = 1\n"
	chat := &fakeChat{
		response: fmt.Sprintf(`{"optimized_code": %q, "severity": "low"}`, "x = 1"),
	}
	backend, err := NewBackend(chat, nil, "")
	require.NoError(t, err)

	suggestions, err := backend.Optimize(context.Background(), request(content))
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestOptimizePropagatesClientErrors(t *testing.T) {
	chat := &fakeChat{err: errors.New("quota exceeded")}
	backend, err := NewBackend(chat, nil, "")
	require.NoError(t, err)

	_, err = backend.Optimize(context.Background(), request("x = 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestOptimizeRejectsGarbageOutput(t *testing.T) {
	chat := &fakeChat{response: "I cannot help with that."}
	backend, err := NewBackend(chat, nil, "")
	require.NoError(t, err)

	_, err = backend.Optimize(context.Background(), request("x = 1\n"))
	require.Error(t, err)
}

func TestPreferredTypeFollowsAcceptanceRatio(t *testing.T) {
	stats := &fakeStats{stats: map[string]store.FeedbackStats{
		"nested_loop":          {OpportunityType: "nested_loop", Accepted: 9, Rejected: 1},
		"string_concatenation": {OpportunityType: "string_concatenation", Accepted: 1, Rejected: 9},
	}}
	backend, err := NewBackend(&fakeChat{response: "{}"}, stats, "")
	require.NoError(t, err)

	assert.Equal(t, "nested_loop", backend.preferredType(context.Background()))
}

func TestPreferredTypeWithoutStatsUsesFirstCandidate(t *testing.T) {
	backend, err := NewBackend(&fakeChat{response: "{}"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, candidateTypes[0], backend.preferredType(context.Background()))
}

func TestFocusRegionPrefersFirstDefinition(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("# header %d", i))
	}
	lines = append(lines, "def work(items):", "    total = 0", "    for x in items:", "        total += x", "    return total")
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("print(%d)", i))
	}

	start, end := focusRegion(lines)
	assert.Equal(t, 11, start)
	assert.Equal(t, 15, end)
}

func TestFocusRegionFallsBackToSecondQuartile(t *testing.T) {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = fmt.Sprintf("value_%d = %d", i, i)
	}

	start, end := focusRegion(lines)
	assert.Equal(t, 11, start)
	assert.Equal(t, 20, end)
}

func TestNewBackendRequiresClient(t *testing.T) {
	_, err := NewBackend(nil, nil, "")
	require.Error(t, err)
}

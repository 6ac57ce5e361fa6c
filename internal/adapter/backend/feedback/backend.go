// Package feedback implements an optimization backend that focuses the
// model on one heuristically chosen region per file and biases the
// opportunity type toward what human reviewers have accepted before.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/store"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
)

const (
	backendName  = "feedback"
	defaultModel = "gpt-4o-mini"

	// Files at or under this many lines are analyzed from the top.
	smallFileLines = 20
)

// candidateTypes are the opportunity types the backend chooses between.
// Order matters: it is the deterministic tie-break.
var candidateTypes = []string{
	"inefficient_lookup",
	"nested_loop",
	"repeated_computation",
	"string_concatenation",
	"general",
}

// ChatCompleter is the slice of the OpenAI client the backend uses.
// *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// StatsSource supplies accumulated human review outcomes per
// opportunity type.
type StatsSource interface {
	GetFeedbackStats(ctx context.Context, opportunityType string) (store.FeedbackStats, error)
}

// Backend implements the optimize.Backend port.
type Backend struct {
	client ChatCompleter
	stats  StatsSource
	model  string
}

// NewBackend constructs a feedback backend. Stats may be nil, in which
// case the opportunity bias falls back to the candidate order.
func NewBackend(client ChatCompleter, stats StatsSource, model string) (*Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("feedback backend requires a chat client")
	}
	if model == "" {
		model = defaultModel
	}
	return &Backend{client: client, stats: stats, model: model}, nil
}

func (b *Backend) Name() string {
	return backendName
}

// modelSuggestion is the JSON shape the prompt asks the model for.
type modelSuggestion struct {
	OptimizedCode string `json:"optimized_code"`
	Description   string `json:"description"`
	Explanation   string `json:"explanation"`
	Severity      string `json:"severity"`
}

func (b *Backend) Optimize(ctx context.Context, req optimize.Request) ([]optimize.RawSuggestion, error) {
	lines := strings.Split(strings.TrimRight(req.Content, "\n"), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return nil, nil
	}

	start, end := focusRegion(lines)
	region := strings.Join(lines[start-1:end], "\n")
	opportunityType := b.preferredType(ctx)

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: 0,
		MaxTokens:   1200,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(req.File, opportunityType, start, end, region),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	parsed, err := parseModelOutput(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.OptimizedCode) == "" || parsed.OptimizedCode == region {
		// Model found nothing to improve; let the adapter place the
		// no-opportunity placeholder.
		return nil, nil
	}

	return []optimize.RawSuggestion{{
		OpportunityType: opportunityType,
		StartLine:       start,
		EndLine:         end,
		Description:     parsed.Description,
		Severity:        parsed.Severity,
		OriginalCode:    region,
		OptimizedCode:   strings.TrimRight(parsed.OptimizedCode, "\n"),
		Explanation:     parsed.Explanation,
	}}, nil
}

const systemPrompt = `You are a code optimization assistant. You receive one region of a source file and must propose a faster or clearer replacement for exactly that region. Respond with ONLY a JSON object with keys "optimized_code", "description", "explanation", and "severity" (one of "low", "medium", "high"). If the region cannot be improved, return the region unchanged as "optimized_code".`

func buildPrompt(file *domain.PRFile, opportunityType string, start, end int, region string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s (%s)\n", file.Filename, file.Language)
	fmt.Fprintf(&sb, "Region: lines %d-%d\n", start, end)
	fmt.Fprintf(&sb, "Focus: %s optimizations have been the most useful in this repository.\n\n", opportunityType)
	sb.WriteString("```\n")
	sb.WriteString(region)
	sb.WriteString("\n```\n")
	sb.WriteString("\nThe replacement must cover the region exactly, preserving indentation of the surrounding code.")
	return sb.String()
}

// parseModelOutput tolerates prose or fencing around the JSON object.
func parseModelOutput(raw string) (modelSuggestion, error) {
	var out modelSuggestion
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last <= first {
		return out, fmt.Errorf("model output is not a JSON object")
	}
	if err := json.Unmarshal([]byte(raw[first:last+1]), &out); err != nil {
		return out, fmt.Errorf("failed to parse model output: %w", err)
	}
	return out, nil
}

// focusRegion picks the 1-based inclusive region the model should look
// at: the whole head for small files, the first function or class
// definition when one exists, otherwise the second quartile of the file.
func focusRegion(lines []string) (int, int) {
	if len(lines) <= smallFileLines {
		return 1, len(lines)
	}

	if start, end, ok := firstDefinition(lines); ok {
		return start, end
	}

	start := len(lines)/4 + 1
	end := len(lines) / 2
	if end < start {
		end = start
	}
	return start, end
}

var definitionPrefixes = []string{"def ", "class ", "func ", "function "}

func firstDefinition(lines []string) (int, int, bool) {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		matched := false
		for _, prefix := range definitionPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		indent := indentOf(line)
		end := i
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "" {
				continue
			}
			if indentOf(lines[j]) <= indent && j > i+1 {
				break
			}
			end = j
		}
		return i + 1, end + 1, true
	}
	return 0, 0, false
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// preferredType picks the candidate opportunity type with the best
// acceptance ratio, Laplace-smoothed so unseen types are not starved.
func (b *Backend) preferredType(ctx context.Context) string {
	if b.stats == nil {
		return candidateTypes[0]
	}

	best := candidateTypes[0]
	bestScore := -1.0
	for _, candidate := range candidateTypes {
		stats, err := b.stats.GetFeedbackStats(ctx, candidate)
		if err != nil {
			continue
		}
		score := float64(stats.Accepted+1) / float64(stats.Accepted+stats.Rejected+2)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

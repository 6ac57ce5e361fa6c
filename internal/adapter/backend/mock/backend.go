// Package mock provides a canned optimization backend for local
// development and tests. Its output depends only on the input file, so
// repeated runs are byte-identical.
package mock

import (
	"context"
	"strings"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
)

const backendName = "mock"

// Backend implements the optimize.Backend port with deterministic
// canned suggestions.
type Backend struct{}

// NewBackend constructs a mock backend.
func NewBackend() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string {
	return backendName
}

// Optimize returns one medium suggestion covering the first few lines
// of the file, plus a high suggestion when the content shows an obvious
// nested loop.
func (b *Backend) Optimize(_ context.Context, req optimize.Request) ([]optimize.RawSuggestion, error) {
	lines := strings.Split(strings.TrimRight(req.Content, "\n"), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return nil, nil
	}

	end := 3
	if end > len(lines) {
		end = len(lines)
	}
	region := strings.Join(lines[:end], "\n")

	suggestions := []optimize.RawSuggestion{
		{
			OpportunityType: "general",
			StartLine:       1,
			EndLine:         end,
			Description:     "Mock optimization of the file header",
			Severity:        domain.SeverityMedium,
			OriginalCode:    region,
			OptimizedCode:   "# optimized by mock backend\n" + region,
			Explanation:     "Canned suggestion produced by the mock backend.",
		},
	}

	if start, endLoop, ok := findNestedLoop(lines); ok {
		region := strings.Join(lines[start-1:endLoop], "\n")
		suggestions = append(suggestions, optimize.RawSuggestion{
			OpportunityType: "nested_loop",
			StartLine:       start,
			EndLine:         endLoop,
			Description:     "Replace the nested scan with a single-pass lookup",
			Severity:        domain.SeverityHigh,
			OriginalCode:    region,
			OptimizedCode:   "# rewritten to a single pass\n" + region,
			Explanation:     "A nested loop over the same collection is quadratic.",
		})
	}

	return suggestions, nil
}

// findNestedLoop returns the 1-based range of the first loop directly
// followed by a more-indented loop.
func findNestedLoop(lines []string) (int, int, bool) {
	for i, line := range lines {
		if !isLoopLine(line) {
			continue
		}
		outer := indentOf(line)
		for j := i + 1; j < len(lines) && j <= i+3; j++ {
			inner := lines[j]
			if strings.TrimSpace(inner) == "" {
				continue
			}
			if indentOf(inner) <= outer {
				break
			}
			if isLoopLine(inner) {
				return i + 1, j + 1, true
			}
		}
	}
	return 0, 0, false
}

func isLoopLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "for ") || strings.HasPrefix(trimmed, "while ")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

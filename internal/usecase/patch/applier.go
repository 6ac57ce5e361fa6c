// Package patch applies accepted suggestions to file content. The
// applier is line-based: each suggestion names a 1-based inclusive line
// range and replaces it only when the current content of that range
// still matches the suggestion's original code.
package patch

import (
	"sort"
	"strings"

	"github.com/bkyoung/pr-optimizer/internal/domain"
)

// Result reports the outcome of applying one suggestion.
type Result struct {
	Suggestion domain.Suggestion
	Applied    bool
	// Reason explains a skip; empty when Applied is true.
	Reason string
}

const (
	reasonOutOfRange = "line range exceeds file length"
	reasonMismatch   = "file content at the target range no longer matches the suggestion"
	reasonNoop       = "suggestion does not change the code"
)

// Apply rewrites content by applying each suggestion whose target range
// still matches its original code. Suggestions are applied from the
// bottom of the file upward so earlier replacements cannot shift the
// line numbers of later ones; the effect on non-overlapping sets is
// independent of input order. Skipped suggestions carry a reason and
// never fail the call.
func Apply(content string, suggestions []domain.Suggestion) (string, []Result) {
	ordered := make([]domain.Suggestion, len(suggestions))
	copy(ordered, suggestions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Location.StartLine != ordered[j].Location.StartLine {
			return ordered[i].Location.StartLine > ordered[j].Location.StartLine
		}
		return ordered[i].ID > ordered[j].ID
	})

	lines, trailingNewline := splitLines(content)
	results := make([]Result, 0, len(ordered))

	for _, s := range ordered {
		if s.OriginalCode == s.OptimizedCode {
			results = append(results, Result{Suggestion: s, Reason: reasonNoop})
			continue
		}

		start, end := s.Location.StartLine, s.Location.EndLine
		if start < 1 || end > len(lines) {
			results = append(results, Result{Suggestion: s, Reason: reasonOutOfRange})
			continue
		}

		current := strings.Join(lines[start-1:end], "\n")
		if current != normalizeRegion(s.OriginalCode) {
			results = append(results, Result{Suggestion: s, Reason: reasonMismatch})
			continue
		}

		replacement, _ := splitLines(normalizeRegion(s.OptimizedCode))
		rebuilt := make([]string, 0, len(lines)-(end-start+1)+len(replacement))
		rebuilt = append(rebuilt, lines[:start-1]...)
		rebuilt = append(rebuilt, replacement...)
		rebuilt = append(rebuilt, lines[end:]...)
		lines = rebuilt

		results = append(results, Result{Suggestion: s, Applied: true})
	}

	// Report in the caller's order.
	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.Suggestion.ID] = r
	}
	final := make([]Result, 0, len(suggestions))
	for _, s := range suggestions {
		final = append(final, byID[s.ID])
	}

	out := strings.Join(lines, "\n")
	if trailingNewline && out != "" {
		out += "\n"
	}
	return out, final
}

// AppliedCount returns how many results were applied.
func AppliedCount(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Applied {
			n++
		}
	}
	return n
}

func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	return strings.Split(trimmed, "\n"), trailing
}

// normalizeRegion strips one trailing newline so that suggestions
// produced from joined line ranges and suggestions carrying a final
// newline compare equal.
func normalizeRegion(code string) string {
	return strings.TrimSuffix(code, "\n")
}

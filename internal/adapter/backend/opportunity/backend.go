// Package opportunity implements a deterministic optimization backend
// that scans file content for known inefficiency patterns. No model is
// involved; the same content always yields the same suggestions.
package opportunity

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
)

const backendName = "opportunity"

// Backend implements the optimize.Backend port by enumerating
// inefficiency patterns and generating one rewrite per hit.
type Backend struct {
	detectors []detector
}

// NewBackend constructs the backend with the default detector set.
func NewBackend() *Backend {
	return &Backend{detectors: defaultDetectors()}
}

func (b *Backend) Name() string {
	return backendName
}

func (b *Backend) Optimize(_ context.Context, req optimize.Request) ([]optimize.RawSuggestion, error) {
	lines := strings.Split(strings.TrimRight(req.Content, "\n"), "\n")

	var suggestions []optimize.RawSuggestion
	for _, d := range b.detectors {
		for _, hit := range d.scan(lines) {
			region := strings.Join(lines[hit.start-1:hit.end], "\n")
			suggestions = append(suggestions, optimize.RawSuggestion{
				OpportunityType: d.opportunityType,
				StartLine:       hit.start,
				EndLine:         hit.end,
				Description:     d.description,
				Severity:        d.severity,
				OriginalCode:    region,
				OptimizedCode:   d.rewrite(region),
				Explanation:     d.explanation,
			})
		}
	}

	// Stable order: by start line, then opportunity type.
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].StartLine != suggestions[j].StartLine {
			return suggestions[i].StartLine < suggestions[j].StartLine
		}
		return suggestions[i].OpportunityType < suggestions[j].OpportunityType
	})
	return suggestions, nil
}

// hit is a 1-based inclusive line range flagged by a detector.
type hit struct {
	start, end int
}

type detector struct {
	opportunityType string
	description     string
	explanation     string
	severity        string
	scan            func(lines []string) []hit
	rewrite         func(region string) string
}

func defaultDetectors() []detector {
	return []detector{
		{
			opportunityType: "nested_loop",
			description:     "Nested loop over a collection can usually be replaced with a single pass and a lookup structure",
			explanation:     "Two loops over the same data make the work quadratic in the input size. Building a set or map once keeps it linear.",
			severity:        domain.SeverityHigh,
			scan:            scanNestedLoops,
			rewrite:         commentedRewrite("replace the inner scan with a precomputed set or map lookup"),
		},
		{
			opportunityType: "string_concatenation",
			description:     "String concatenation inside a loop reallocates on every iteration",
			explanation:     "Appending parts to a list and joining once, or using a builder, avoids repeated copies of the growing string.",
			severity:        domain.SeverityMedium,
			scan:            scanStringConcatInLoop,
			rewrite:         commentedRewrite("collect parts and join once after the loop"),
		},
		{
			opportunityType: "repeated_computation",
			description:     "Loop bound recomputes an invariant expression on every iteration",
			explanation:     "Hoisting the invariant call out of the loop header computes it once instead of once per iteration.",
			severity:        domain.SeverityLow,
			scan:            scanRepeatedComputation,
			rewrite:         commentedRewrite("hoist the invariant computation above the loop"),
		},
		{
			opportunityType: "inefficient_lookup",
			description:     "Membership test against .keys() allocates a view when the mapping itself supports the test",
			explanation:     "Testing membership directly on the mapping is equivalent and skips the intermediate view object.",
			severity:        domain.SeverityLow,
			scan:            scanKeysLookup,
			rewrite: func(region string) string {
				return keysCallPattern.ReplaceAllString(region, "in $1")
			},
		},
	}
}

// commentedRewrite annotates the region with the intended transformation.
// Rewrites that cannot be expressed mechanically stay advisory; the
// patch applier treats the annotated region as the replacement.
func commentedRewrite(note string) func(string) string {
	return func(region string) string {
		indent := region[:len(region)-len(strings.TrimLeft(region, " \t"))]
		return fmt.Sprintf("%s# TODO(perf): %s\n%s", indent, note, region)
	}
}

func scanNestedLoops(lines []string) []hit {
	var hits []hit
	for i, line := range lines {
		if !isLoopHeader(line) {
			continue
		}
		outer := indentOf(line)
		for j := i + 1; j < len(lines); j++ {
			inner := lines[j]
			if strings.TrimSpace(inner) == "" {
				continue
			}
			if indentOf(inner) <= outer {
				break
			}
			if isLoopHeader(inner) {
				hits = append(hits, hit{start: i + 1, end: blockEnd(lines, j, indentOf(inner)) + 1})
				break
			}
		}
	}
	return hits
}

var concatPattern = regexp.MustCompile(`^\s*(\w+)\s*(?:\+=|=\s*(\w+)\s*\+)\s*`)

// isSelfAppend reports whether the line appends to its own left-hand
// side, either with += or the expanded x = x + form.
func isSelfAppend(line string) bool {
	m := concatPattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	return m[2] == "" || m[2] == m[1]
}

func scanStringConcatInLoop(lines []string) []hit {
	var hits []hit
	for i, line := range lines {
		if !isLoopHeader(line) {
			continue
		}
		loopIndent := indentOf(line)
		for j := i + 1; j < len(lines); j++ {
			body := lines[j]
			if strings.TrimSpace(body) == "" {
				continue
			}
			if indentOf(body) <= loopIndent {
				break
			}
			if isSelfAppend(body) && strings.ContainsAny(body, `"'`) {
				hits = append(hits, hit{start: i + 1, end: j + 1})
				break
			}
		}
	}
	return hits
}

var invariantBoundPattern = regexp.MustCompile(`(?:range\s*\(\s*len\s*\(|while\s+\w+\s*<\s*len\s*\()`)

func scanRepeatedComputation(lines []string) []hit {
	var hits []hit
	for i, line := range lines {
		if isLoopHeader(line) && invariantBoundPattern.MatchString(line) {
			hits = append(hits, hit{start: i + 1, end: i + 1})
		}
	}
	return hits
}

var keysCallPattern = regexp.MustCompile(`in\s+(\w+)\.keys\(\)`)

func scanKeysLookup(lines []string) []hit {
	var hits []hit
	for i, line := range lines {
		if keysCallPattern.MatchString(line) {
			hits = append(hits, hit{start: i + 1, end: i + 1})
		}
	}
	return hits
}

func isLoopHeader(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "for ") || strings.HasPrefix(trimmed, "while ")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// blockEnd returns the 0-based index of the last line belonging to the
// block whose header is at start with the given indent.
func blockEnd(lines []string, start, indent int) int {
	end := start
	for j := start + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		if indentOf(lines[j]) <= indent {
			break
		}
		end = j
	}
	return end
}

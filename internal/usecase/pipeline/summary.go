package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bkyoung/pr-optimizer/internal/domain"
)

// maxExcerpts caps how many suggestions get a full diff excerpt in the
// summary comment; the rest are listed in one line each.
const maxExcerpts = 5

var severityRank = map[string]int{
	domain.SeverityHigh:   0,
	domain.SeverityMedium: 1,
	domain.SeverityLow:    2,
}

// BuildSummary renders the markdown summary comment for one run:
// severity counts up front, diff excerpts for the highest-impact
// suggestions, and a one-line listing for the remainder.
func BuildSummary(pr domain.PullRequest, files []domain.PRFile, suggestions []domain.Suggestion) string {
	fileNames := make(map[int64]string, len(files))
	for _, f := range files {
		fileNames[f.ID] = f.Filename
	}

	var actionable []domain.Suggestion
	placeholders := 0
	counts := map[string]int{}
	for _, s := range suggestions {
		if s.OpportunityType == "no_opportunity" {
			placeholders++
			continue
		}
		actionable = append(actionable, s)
		counts[s.Severity]++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Optimization report for #%d\n\n", pr.Number)

	if len(actionable) == 0 {
		fmt.Fprintf(&sb, "Analyzed %d file(s); no optimization opportunities were identified.\n", len(files))
		return sb.String()
	}

	fmt.Fprintf(&sb, "Found **%d** suggestion(s) across %d file(s): %d high, %d medium, %d low.\n\n",
		len(actionable), len(files),
		counts[domain.SeverityHigh], counts[domain.SeverityMedium], counts[domain.SeverityLow])

	// Highest severity first, then file and position for a stable order.
	sort.SliceStable(actionable, func(i, j int) bool {
		if severityRank[actionable[i].Severity] != severityRank[actionable[j].Severity] {
			return severityRank[actionable[i].Severity] < severityRank[actionable[j].Severity]
		}
		if fileNames[actionable[i].FileID] != fileNames[actionable[j].FileID] {
			return fileNames[actionable[i].FileID] < fileNames[actionable[j].FileID]
		}
		return actionable[i].Location.StartLine < actionable[j].Location.StartLine
	})

	for i, s := range actionable {
		name := fileNames[s.FileID]
		if i < maxExcerpts {
			fmt.Fprintf(&sb, "### %s (%s, %s severity)\n\n", name, s.Location, s.Severity)
			if s.Description != "" {
				fmt.Fprintf(&sb, "%s\n\n", s.Description)
			}
			sb.WriteString("```diff\n")
			writeDiffLines(&sb, s.OriginalCode, "-")
			writeDiffLines(&sb, s.OptimizedCode, "+")
			sb.WriteString("```\n")
			if s.Explanation != "" {
				fmt.Fprintf(&sb, "\n%s\n", s.Explanation)
			}
			sb.WriteString("\n")
		} else {
			fmt.Fprintf(&sb, "- %s, %s: %s (%s)\n", name, s.Location, s.Description, s.Severity)
		}
	}

	if placeholders > 0 {
		fmt.Fprintf(&sb, "\n%d file(s) were analyzed without findings.\n", placeholders)
	}
	return sb.String()
}

func writeDiffLines(sb *strings.Builder, code, prefix string) {
	for _, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// Location identifies an inclusive, 1-based line range within a file.
// Its string form, "lines N-M", is what gets persisted and what the
// optimization backends emit.
type Location struct {
	StartLine int
	EndLine   int
}

// String renders the canonical locator form.
func (l Location) String() string {
	return fmt.Sprintf("lines %d-%d", l.StartLine, l.EndLine)
}

// Lines returns the number of lines covered by the range.
func (l Location) Lines() int {
	return l.EndLine - l.StartLine + 1
}

var locationPattern = regexp.MustCompile(`^lines? (\d+)(?:-(\d+))?$`)

// ParseLocation resolves a locator string back to a line range.
// Accepts "lines N-M" and the single-line form "line N".
func ParseLocation(s string) (Location, error) {
	m := locationPattern.FindStringSubmatch(s)
	if m == nil {
		return Location{}, fmt.Errorf("%w: unresolvable location %q", ErrValidation, s)
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return Location{}, fmt.Errorf("%w: unresolvable location %q", ErrValidation, s)
	}
	end := start
	if m[2] != "" {
		end, err = strconv.Atoi(m[2])
		if err != nil {
			return Location{}, fmt.Errorf("%w: unresolvable location %q", ErrValidation, s)
		}
	}
	if start < 1 || end < start {
		return Location{}, fmt.Errorf("%w: invalid line range in %q", ErrValidation, s)
	}
	return Location{StartLine: start, EndLine: end}, nil
}

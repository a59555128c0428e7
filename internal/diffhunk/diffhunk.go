// Package diffhunk parses unified diff hunks into structured lines.
package diffhunk

import (
	"regexp"
	"strconv"
	"strings"
)

// LineKind classifies a parsed diff line.
type LineKind string

// Supported line kinds.
const (
	Add     LineKind = "add"
	Remove  LineKind = "remove"
	Context LineKind = "context"
)

// Line is a single line parsed from a diff hunk. Number is the new-file line
// number, 0 when unknown (no hunk header seen yet, or a removed line before
// any header).
type Line struct {
	Kind    LineKind
	Content string
	Number  int
}

var headerRe = regexp.MustCompile(`^@@\s+-\d+(?:,\d+)?\s+\+(\d+)(?:,\d+)?\s+@@`)

// Parse splits a hunk into add/remove/context lines. The @@ header seeds the
// new-file line counter; added and context lines advance it, removed lines do
// not.
func Parse(hunk string) []Line {
	if strings.TrimSpace(hunk) == "" {
		return nil
	}

	var lines []Line
	current := 0

	for _, raw := range strings.Split(hunk, "\n") {
		if m := headerRe.FindStringSubmatch(raw); m != nil {
			current, _ = strconv.Atoi(m[1])
			continue
		}

		switch {
		case strings.HasPrefix(raw, "+"):
			lines = append(lines, Line{Kind: Add, Content: raw[1:], Number: current})
			if current > 0 {
				current++
			}
		case strings.HasPrefix(raw, "-"):
			lines = append(lines, Line{Kind: Remove, Content: raw[1:], Number: current})
		default:
			content := raw
			if strings.HasPrefix(raw, " ") {
				content = raw[1:]
			}
			lines = append(lines, Line{Kind: Context, Content: content, Number: current})
			if current > 0 {
				current++
			}
		}
	}

	return lines
}

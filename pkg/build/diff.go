package build

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Drift describes how a stale output differs from what a build would write.
type Drift struct {
	Added   int
	Removed int
	// Text lists changed lines prefixed with "-" (on disk) or "+" (expected).
	Text string
}

// LineDiff computes a line-level diff from current to expected.
func LineDiff(current, expected string) Drift {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(current, expected)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var (
		drift Drift
		text  strings.Builder
	)

	for _, edit := range diffs {
		var prefix string

		switch edit.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
			continue
		}

		for line := range strings.Lines(edit.Text) {
			text.WriteString(prefix)
			text.WriteString(strings.TrimRight(line, "\n"))
			text.WriteByte('\n')

			if prefix == "+" {
				drift.Added++
			} else {
				drift.Removed++
			}
		}
	}

	drift.Text = text.String()

	return drift
}

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/sasspipe/pkg/build"
)

// BuildFile is the serializable form of one build result.
type BuildFile struct {
	Entry        string  `json:"entry"           yaml:"entry"`
	Output       string  `json:"output"          yaml:"output"`
	Status       string  `json:"status"          yaml:"status"`
	CSSBytes     int     `json:"css_bytes"       yaml:"css_bytes"`
	MapBytes     int     `json:"map_bytes"       yaml:"map_bytes"`
	Dependencies int     `json:"dependencies"    yaml:"dependencies"`
	Cached       bool    `json:"cached"          yaml:"cached"`
	Seconds      float64 `json:"seconds"         yaml:"seconds"`
	Diff         string  `json:"diff,omitempty"  yaml:"diff,omitempty"`
}

// BuildSummary is the serializable form of a build report.
type BuildSummary struct {
	Files   []BuildFile `json:"files"   yaml:"files"`
	Written int         `json:"written" yaml:"written"`
	Stale   int         `json:"stale"   yaml:"stale"`
	Seconds float64     `json:"seconds" yaml:"seconds"`
}

// Summarize converts a build report, showing paths relative to root.
func Summarize(root string, rep build.Report) BuildSummary {
	summary := BuildSummary{
		Files:   make([]BuildFile, 0, len(rep.Files)),
		Written: rep.Written(),
		Stale:   len(rep.Stale()),
		Seconds: rep.Duration.Seconds(),
	}

	for _, f := range rep.Files {
		bf := BuildFile{
			Entry:        display(root, f.Entry),
			Output:       display(root, f.Output),
			Status:       string(f.Status),
			CSSBytes:     f.CSSBytes,
			MapBytes:     f.MapBytes,
			Dependencies: f.Dependencies,
			Cached:       f.Cached,
			Seconds:      f.Duration.Seconds(),
		}

		if f.Drift != nil {
			bf.Diff = f.Drift.Text
		}

		summary.Files = append(summary.Files, bf)
	}

	return summary
}

// WriteBuild renders a build report.
func WriteBuild(w io.Writer, format Format, root string, rep build.Report) error {
	summary := Summarize(root, rep)

	switch format {
	case FormatText:
		return writeBuildText(w, summary)
	case FormatJSON, FormatYAML:
		return writeEncoded(summary, format, w)
	case FormatHTML:
		return writeBuildHTML(w, summary)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeBuildText(w io.Writer, summary BuildSummary) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"Entry", "Output", "Status", "CSS", "Map", "Deps", "Cached", "Time"})

	var cssTotal int

	for _, f := range summary.Files {
		cssTotal += f.CSSBytes

		tbl.AppendRow(table.Row{
			f.Entry,
			f.Output,
			f.Status,
			humanize.IBytes(uint64(max(f.CSSBytes, 0))),
			humanize.IBytes(uint64(max(f.MapBytes, 0))),
			f.Dependencies,
			f.Cached,
			time.Duration(f.Seconds * float64(time.Second)).Round(time.Millisecond),
		})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d entries", len(summary.Files)),
		fmt.Sprintf("%d written, %d stale", summary.Written, summary.Stale),
		"",
		humanize.IBytes(uint64(max(cssTotal, 0))),
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("text write: %w", err)
	}

	for _, f := range summary.Files {
		if f.Diff == "" {
			continue
		}

		_, err = fmt.Fprintf(w, "\n%s is stale:\n%s", f.Output, indent(f.Diff))
		if err != nil {
			return fmt.Errorf("text write: %w", err)
		}
	}

	return nil
}

func indent(text string) string {
	var b strings.Builder

	for line := range strings.Lines(text) {
		b.WriteString("    ")
		b.WriteString(line)
	}

	return b.String()
}

package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/sasspipe/pkg/depgraph"
)

// File is one resolved dependency.
type File struct {
	Path  string `json:"path"  yaml:"path"`
	Bytes int64  `json:"bytes" yaml:"bytes"`
}

// Unresolved is an import target that matched no file.
type Unresolved struct {
	Importer string `json:"importer" yaml:"importer"`
	Target   string `json:"target"   yaml:"target"`
}

// Dependencies lists what one entry stylesheet imports, transitively.
type Dependencies struct {
	Entry      string       `json:"entry"                yaml:"entry"`
	Files      []File       `json:"files"                yaml:"files"`
	Unresolved []Unresolved `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
}

// TotalBytes sums the dependency sizes.
func (d Dependencies) TotalBytes() int64 {
	var total int64

	for _, f := range d.Files {
		total += f.Bytes
	}

	return total
}

// WriteDependencies renders deps. Paths in text, HTML and DOT output are shown
// relative to root.
func WriteDependencies(w io.Writer, format Format, root string, deps []Dependencies) error {
	switch format {
	case FormatText:
		return writeDependenciesText(w, root, deps)
	case FormatJSON, FormatYAML:
		return writeEncoded(deps, format, w)
	case FormatHTML:
		return writeDependenciesHTML(w, root, deps)
	case FormatDOT:
		return writeDependenciesDOT(w, root, deps)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeDependenciesText(w io.Writer, root string, deps []Dependencies) error {
	for _, entry := range deps {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.Style().Options.DrawBorder = false
		tbl.Style().Options.SeparateColumns = false
		tbl.Style().Format.Footer = text.FormatDefault
		tbl.SetTitle(display(root, entry.Entry))
		tbl.AppendHeader(table.Row{"#", "File", "Size"})

		for i, f := range entry.Files {
			tbl.AppendRow(table.Row{i + 1, display(root, f.Path), humanize.IBytes(uint64(max(f.Bytes, 0)))})
		}

		tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d files", len(entry.Files)),
			humanize.IBytes(uint64(max(entry.TotalBytes(), 0)))})

		_, err := fmt.Fprintln(w, tbl.Render())
		if err != nil {
			return fmt.Errorf("text write: %w", err)
		}

		for _, miss := range entry.Unresolved {
			_, err = fmt.Fprintf(w, "unresolved: %s in %s\n", miss.Target, display(root, miss.Importer))
			if err != nil {
				return fmt.Errorf("text write: %w", err)
			}
		}
	}

	return nil
}

func writeDependenciesDOT(w io.Writer, root string, deps []Dependencies) error {
	graph := depgraph.New()

	for _, entry := range deps {
		files := make([]string, len(entry.Files))
		for i, f := range entry.Files {
			files[i] = display(root, f.Path)
		}

		graph.Set(display(root, entry.Entry), files)
	}

	_, err := io.WriteString(w, graph.Serialize())
	if err != nil {
		return fmt.Errorf("dot write: %w", err)
	}

	return nil
}

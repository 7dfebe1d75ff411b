package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
	"github.com/Sumatoshi-tech/sasspipe/pkg/build"
	"github.com/Sumatoshi-tech/sasspipe/pkg/report"
)

// ErrStaleOutputs is returned by build --check when any output differs from a fresh build.
var ErrStaleOutputs = errors.New("outputs are stale")

type buildFlags struct {
	out     string
	changed []string
	exclude []string
	check   bool
	workers int
	format  string
	noColor bool
}

// NewBuildCommand creates the build command.
func (a *App) NewBuildCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Compile every entry stylesheet under a directory",
		Long: `Compile every non-partial .scss and .sass file under dir (default: the
project root) and write the CSS, source maps and CSS module exports to the output
directory.

With --changed only the entries that are, or transitively import, the changed
files are rebuilt. With --check nothing is written; the command fails when an
output on disk differs from a fresh build.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output directory (default: paths.output under the project root)")
	cmd.Flags().StringSliceVar(&flags.changed, "changed", nil, "Rebuild only entries affected by these files")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "Globs, relative to dir, of stylesheets that are not entries")
	cmd.Flags().BoolVar(&flags.check, "check", false, "Compare outputs with a fresh build instead of writing them")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Number of parallel compiles (0 = build.workers or CPU count)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(report.FormatText), "Output format: text, json, yaml, html")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colored status lines")

	return cmd
}

func (a *App) runBuild(cmd *cobra.Command, args []string, flags buildFlags) error {
	outFormat, err := report.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	e, err := a.setup(observability.ModeCLI)
	if err != nil {
		return err
	}
	defer e.close()

	stopDiagnostics, err := e.startDiagnostics()
	if err != nil {
		return err
	}
	defer stopDiagnostics()

	opts, err := e.buildOptions(args, flags)
	if err != nil {
		return err
	}

	builder, err := build.New(e.pipeline, e.resolver.Filesystem(), opts,
		build.WithLogger(observability.Component(e.providers.Logger, "build")),
		build.WithTracer(e.providers.Tracer),
	)
	if err != nil {
		return err
	}

	entries, err := builder.Discover()
	if err != nil {
		return err
	}

	if len(flags.changed) > 0 {
		entries, err = affectedEntries(cmd, builder, entries, flags.changed)
		if err != nil {
			return err
		}
	}

	var rep build.Report

	err = e.ops.Measure(cmd.Context(), observability.OpBuild, func() error {
		var buildErr error

		rep, buildErr = builder.Build(cmd.Context(), entries)

		return buildErr
	})
	if err != nil {
		return err
	}

	if !a.quiet && outFormat == report.FormatText {
		printStatus(cmd.ErrOrStderr(), e.root, rep, flags.noColor)
	}

	err = report.WriteBuild(cmd.OutOrStdout(), outFormat, e.root, rep)
	if err != nil {
		return err
	}

	if stale := len(rep.Stale()); flags.check && stale > 0 {
		return fmt.Errorf("%w: %d of %d", ErrStaleOutputs, stale, len(rep.Files))
	}

	return nil
}

func (e *env) buildOptions(args []string, flags buildFlags) (build.Options, error) {
	source := e.root

	if len(args) > 0 {
		abs, err := absPath(args[0])
		if err != nil {
			return build.Options{}, err
		}

		source = abs
	}

	out := flags.out
	if out == "" {
		out = filepath.Join(e.root, e.cfg.Paths.Output)
	}

	out, err := absPath(out)
	if err != nil {
		return build.Options{}, err
	}

	workers := flags.workers
	if workers == 0 {
		workers = e.cfg.Build.Workers
	}

	return build.Options{
		SourceDir: source,
		OutDir:    out,
		Exclude:   flags.exclude,
		Workers:   workers,
		Check:     flags.check,
	}, nil
}

func affectedEntries(cmd *cobra.Command, builder *build.Builder, entries, changed []string) ([]string, error) {
	err := builder.Scan(cmd.Context(), entries)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(changed))

	for _, file := range changed {
		abs, absErr := absPath(file)
		if absErr != nil {
			return nil, absErr
		}

		files = append(files, abs)
	}

	return builder.Affected(files...), nil
}

func printStatus(w io.Writer, root string, rep build.Report, noColor bool) {
	if noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	for _, file := range rep.Files {
		var paint *color.Color

		switch file.Status {
		case build.StatusWritten:
			paint = color.New(color.FgGreen)
		case build.StatusStale:
			paint = color.New(color.FgRed)
		default:
			paint = color.New(color.FgHiBlack)
		}

		rel, err := filepath.Rel(root, file.Entry)
		if err != nil {
			rel = file.Entry
		}

		paint.Fprintf(w, "%-9s %s\n", file.Status, rel)
	}
}

package commands

import (
	"fmt"

	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
	"github.com/Sumatoshi-tech/sasspipe/pkg/report"
)

// NewDepsCommand creates the deps command.
func (a *App) NewDepsCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "deps <file>...",
		Short: "List the stylesheets a file imports",
		Long: `List every stylesheet each file imports, transitively, following the partial,
extension, index and glob conventions. Targets that match no file are reported
as unresolved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			e, err := a.setup(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer e.close()

			deps := make([]report.Dependencies, 0, len(args))

			err = e.ops.Measure(cmd.Context(), observability.OpDeps, func() error {
				for _, arg := range args {
					entry, depErr := e.dependencies(cmd, arg)
					if depErr != nil {
						return depErr
					}

					deps = append(deps, entry)
				}

				return nil
			})
			if err != nil {
				return err
			}

			return report.WriteDependencies(cmd.OutOrStdout(), outFormat, e.root, deps)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "Output format: text, json, yaml, html, dot")

	return cmd
}

func (e *env) dependencies(cmd *cobra.Command, arg string) (report.Dependencies, error) {
	path, err := absPath(arg)
	if err != nil {
		return report.Dependencies{}, err
	}

	fsys := e.resolver.Filesystem()

	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return report.Dependencies{}, fmt.Errorf("read %s: %w", path, err)
	}

	res, err := e.resolver.ResolveDetailed(cmd.Context(), string(data), path, e.pipeline.ResolveContext())
	if err != nil {
		return report.Dependencies{}, err
	}

	out := report.Dependencies{Entry: path, Files: make([]report.File, 0, len(res.Files))}

	for _, file := range res.Files {
		info, statErr := fsys.Stat(file)
		if statErr != nil {
			return report.Dependencies{}, fmt.Errorf("stat %s: %w", file, statErr)
		}

		out.Files = append(out.Files, report.File{Path: file, Bytes: info.Size()})
	}

	for _, miss := range res.Unresolved {
		out.Unresolved = append(out.Unresolved, report.Unresolved{Importer: miss.Importer, Target: miss.Target})
	}

	return out, nil
}

package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
)

const (
	outputPerm = 0o644
	outputDir  = 0o755
)

// NewCompileCommand creates the compile command.
func (a *App) NewCompileCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile one stylesheet to CSS",
		Long: `Compile a Sass/SCSS file with the project's include paths, source map and
CSS modules settings. Without --output the CSS is written to stdout; with it the
source map and module exports are written next to the CSS.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer e.close()

			path, err := absPath(args[0])
			if err != nil {
				return err
			}

			data, err := util.ReadFile(e.resolver.Filesystem(), path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			out, err := e.pipeline.Compile(cmd.Context(), compiler.Source{Path: path, Data: string(data)})
			if err != nil {
				return err
			}

			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), out.CSS)

				return err
			}

			return e.writeOutput(output, out)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write CSS to this file instead of stdout")

	return cmd
}

func (e *env) writeOutput(output string, out compiler.Output) error {
	path, err := absPath(output)
	if err != nil {
		return err
	}

	fsys := e.resolver.Filesystem()

	mkdirErr := fsys.MkdirAll(filepath.Dir(path), outputDir)
	if mkdirErr != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), mkdirErr)
	}

	files := map[string][]byte{path: []byte(out.CSS)}

	if len(out.Map) > 0 {
		files[path+".map"] = out.Map
	}

	if out.Exports != "" {
		files[path+".js"] = []byte(out.Exports)
	}

	for name, data := range files {
		writeErr := util.WriteFile(fsys, name, data, outputPerm)
		if writeErr != nil {
			return fmt.Errorf("write %s: %w", name, writeErr)
		}

		e.providers.Logger.Debug("wrote output", "path", name, "bytes", len(data))
	}

	return nil
}

// Package main provides the entry point for the sasspipe CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sasspipe/cmd/sasspipe/commands"
)

func main() {
	_ = godotenv.Load()

	app := commands.NewApp()

	rootCmd := &cobra.Command{
		Use:   "sasspipe",
		Short: "sasspipe - Sass/SCSS dependency resolution and build pipeline",
		Long: `sasspipe resolves Sass/SCSS import graphs and compiles stylesheets to CSS.

Commands:
  deps      List the stylesheets a file imports, transitively
  compile   Compile one stylesheet
  build     Compile every entry stylesheet under a directory
  mcp       Serve dependency and compile tools over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(app.NewDepsCommand())
	rootCmd.AddCommand(app.NewCompileCommand())
	rootCmd.AddCommand(app.NewBuildCommand())
	rootCmd.AddCommand(app.NewMCPCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

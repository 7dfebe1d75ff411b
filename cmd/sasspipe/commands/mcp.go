package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sasspipe/internal/mcp"
	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
)

// NewMCPCommand creates the MCP server command.
func (a *App) NewMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes sasspipe as tools that AI agents can discover and invoke:
  - sass_dependencies: Transitive imports of a stylesheet, with unresolved targets
  - sass_compile: Compile a stylesheet with the project settings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup(observability.ModeMCP)
			if err != nil {
				return err
			}
			defer e.close()

			stopDiagnostics, err := e.startDiagnostics()
			if err != nil {
				return err
			}
			defer stopDiagnostics()

			srv := mcp.NewServer(mcp.ServerDeps{
				Pipeline: e.pipeline,
				Resolver: e.resolver,
				Logger:   observability.Component(e.providers.Logger, "mcp"),
				Metrics:  e.ops,
				Tracer:   e.providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}
}

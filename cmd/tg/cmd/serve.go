package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/turbopuffer/turbogrep/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run turbogrep as an MCP server over stdio",
		Long:  `Exposes the search_code tool over the Model Context Protocol on stdio, for use by MCP-aware agents.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orchestrator, err := buildOrchestrator(cmd.Context())
			if err != nil {
				return err
			}

			server, err := mcpserver.NewServer(orchestrator, slog.Default())
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context())
		},
	}

	return cmd
}

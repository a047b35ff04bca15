package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lyy0709/contextweaver/internal/logging"
	"github.com/lyy0709/contextweaver/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server exposing scan and retrieve as tools",
		Long: `Start the Model Context Protocol server. Over stdio transport this
talks JSON-RPC exclusively on stdout, so logging is redirected to a
file for the duration of the run, following the MCP stdio contract.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cleanup, err := logging.SetupMCPMode()
			if err != nil {
				return err
			}
			defer cleanup()

			server := mcp.NewServer(slog.Default())
			return server.Serve(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport to serve on (stdio)")

	return cmd
}

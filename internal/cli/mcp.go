package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var build string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve graph queries to MCP clients over stdio",
		Long: `Load a saved snapshot and answer Model Context Protocol tool calls
(graph_stats, find_resources, find_handlers, data_model_usage, find_nodes)
over stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadSnapshot(cmd, build)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return mcp.NewServer(g, slog.Default()).RunStdio(ctx)
		},
	}

	cmd.Flags().StringVar(&build, "build", "", "snapshot to serve (default: the only saved one)")

	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/apresai/personacall/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server (create_call, process_utterance, get_call, end_call, classify_location)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpserver.Run(cmd.Context(), cfg, Version, logger)
	},
}

func init() {
	f := serveCmd.Flags()
	f.Int("port", 8000, "MCP HTTP port")
	f.Int("metrics-port", 9090, "Prometheus metrics port")
	f.String("table", "personacall", "DynamoDB table for call sessions")
	f.String("bucket", "", "S3 bucket for reply audio (enables speak)")

	bind(f.Lookup("port"), "server.port")
	bind(f.Lookup("metrics-port"), "server.metrics_port")
	bind(f.Lookup("table"), "server.table")
	bind(f.Lookup("bucket"), "server.bucket")
}

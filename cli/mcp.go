// ABOUTME: MCP server subcommand
// ABOUTME: Serves the trust tools over stdio for MCP clients
package cli

import (
	"fmt"

	"github.com/harperreed/trustcache/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server on stdio.

Exposes get_trust_signal, compute_trust_signals, record_interaction,
sync_contacts, clear_cache, and get_status tools, plus status and
per-sender trust resources.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			opts.logger.Info("starting MCP server", "db", opts.cfg.DBPath)

			server := handlers.NewServer(app.Provider, versionInfo.Version)
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("MCP server failed: %w", err)
			}
			return nil
		},
	}
}

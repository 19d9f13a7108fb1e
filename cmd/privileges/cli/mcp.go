package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pmcp "github.com/privileges-api/privileges/internal/mcp"
	"github.com/privileges-api/privileges/internal/service"
	"github.com/privileges-api/privileges/internal/token"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes read-only tools
over the stored privilege events. Supports stdio (default) and HTTP transports.

In stdio mode the server speaks JSON-RPC over stdin/stdout and all logging goes
to stderr.`,
		Example: `  privileges mcp                             # stdio mode
  privileges mcp --transport http --port 3001  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	if transport != "stdio" && transport != "http" {
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(settings, os.Stderr)

	st, err := openStore(context.Background(), settings)
	if err != nil {
		return err
	}
	defer st.Close()

	events := service.NewEventService(st, token.SystemClock, logger)
	mcpSrv := pmcp.NewMCPServer(events, versionString(), logger)

	if transport == "http" {
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	}
	return mcpSrv.ServeStdio()
}

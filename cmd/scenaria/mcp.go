package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/scenaria"
	"github.com/aretw0/scenaria/internal/cli"
	"github.com/aretw0/scenaria/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts Scenaria as an MCP Server so AI agents can list and validate scenarios and
drive sessions as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// Logs always go to stderr, so they never corrupt JSON-RPC on stdout.
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}

		opts := []mcp.Option{mcp.WithLogger(app.Logger), mcp.WithSanitizer(app.Sanitizer())}
		if ev := app.Engine.Evaluator(); ev != nil {
			opts = append(opts, mcp.WithEvaluator(ev))
		}
		srv := mcp.NewServer(app.Engine.Library(), app.Engine.Sessions(), strings.TrimSpace(scenaria.Version), opts...)

		switch transport {
		case "stdio":
			app.Logger.Info("starting MCP server", "transport", transport)
			return srv.ServeStdio()
		case "sse":
			app.Logger.Info("starting MCP server", "transport", transport, "port", port)

			sigCtx := cli.NewSignalContext(context.Background())
			defer sigCtx.Cancel()

			if err := srv.ServeSSE(sigCtx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("MCP server failed: %w", err)
			}
			app.Logger.Info("MCP server stopped")
			return nil
		}
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}

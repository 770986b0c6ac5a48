package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/embedding"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driving/mcp"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/metrics"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead. Each HTTP session has its own
tenant context and may authenticate with "Authorization: Bearer <jwt>".

While serving, the tag index is refreshed and the embedding queue drained
in the background.

Examples:
  # Stdio mode (default, for Claude Desktop)
  vconsearch mcp serve

  # HTTP mode with Prometheus metrics
  vconsearch mcp serve --port 8080 --metrics-addr :9090

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "vcons": {
        "command": "/path/to/vconsearch",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().String("metrics-addr", "", "address for the Prometheus /metrics endpoint (default from metrics.addr)")
	mcpServeCmd.Flags().Bool("no-background", false, "do not run scheduled tag refresh and embedding drain")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("getting metrics-addr flag: %w", err)
	}
	if metricsAddr == "" {
		metricsAddr = settings.Metrics.Addr
	}
	noBackground, err := cmd.Flags().GetBool("no-background")
	if err != nil {
		return fmt.Errorf("getting no-background flag: %w", err)
	}

	claims, err := claimsFromToken()
	if err != nil {
		return err
	}

	ports := &mcp.Ports{
		Search:   searchService,
		Tenant:   tenantService,
		Tags:     tagService,
		Document: documentService,
	}
	server, err := mcp.NewServer(ports, mcp.Options{
		Claims:      claims,
		Trusted:     settings.Tenant.Trusted,
		TokenSecret: settings.Tenant.JWTSecret,
	})
	if err != nil {
		return err
	}

	// The server returning ends the background work.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if scheduler != nil && !noBackground {
		if queryEmbedder != nil {
			if err := embedding.Validate(ctx, queryEmbedder); err != nil {
				logger.Warn("embedding producer %v; content stays queued until it is reachable", err)
			}
		}
		g.Go(func() error { return ignoreCanceled(scheduler.Start(ctx)) })
	}

	if metricsAddr != "" {
		logger.Info("metrics listening on %s", metricsAddr)
		g.Go(func() error { return metrics.Serve(ctx, metricsAddr) })
	}

	g.Go(func() error {
		defer cancel()
		if port > 0 {
			addr := fmt.Sprintf(":%d", port)
			fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
			return server.RunHTTP(ctx, addr)
		}
		return ignoreCanceled(server.Run(ctx))
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/studyrag/internal/api"
	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/mcp"
	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/telemetry"
)

// Server transports.
const (
	transportHTTP = "http"
	transportMCP  = "mcp"
)

type serveOptions struct {
	transport string
	addr      string
}

func newServeCmd(g *globals) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over HTTP or MCP",
		Long: `Start a long-running server over the indexed documents.

  http  JSON API on server.http_addr with /metrics for Prometheus
  mcp   Model Context Protocol over stdio, for AI assistants

The server holds the data directory; other studyrag commands that open it
fail until the server stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: http, mcp (default: server.transport)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (default: server.http_addr)")

	return cmd
}

// isMCPServe reports whether cmd is `serve --transport mcp`, where stdout
// carries the protocol and logs must stay off the terminal.
func isMCPServe(cmd *cobra.Command) bool {
	if cmd.Name() != "serve" {
		return false
	}
	transport, err := cmd.Flags().GetString("transport")
	return err == nil && transport == transportMCP
}

func runServe(cmd *cobra.Command, g *globals, opts *serveOptions) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}

	transport := opts.transport
	if transport == "" {
		transport = cfg.Server.Transport
	}
	addr := opts.addr
	if addr == "" {
		addr = cfg.Server.HTTPAddr
	}

	switch transport {
	case transportHTTP:
		metrics := telemetry.NewMetrics()
		engine, _, err := g.openEngine(search.OpenOptions{Metrics: metrics})
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()

		srv := api.New(engine, api.WithMetrics(metrics), api.WithLogger(slog.Default()))
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Serving studyrag on http://%s (Ctrl+C to stop)\n", addr)
		return srv.ListenAndServe(cmd.Context(), addr)

	case transportMCP:
		engine, _, err := g.openEngine(search.OpenOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()

		srv, err := mcp.NewServer(engine, mcp.WithLogger(slog.Default()))
		if err != nil {
			return studyerrors.InternalError("cannot create MCP server", err)
		}
		slog.Info("mcp_server_starting", slog.String("data_dir", cfg.Paths.DataDir))
		return srv.Serve(cmd.Context())

	default:
		return studyerrors.ValidationError(
			fmt.Sprintf("unknown transport %q (expected http or mcp)", transport), nil)
	}
}

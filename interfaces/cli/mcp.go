package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolhost/application"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/mcp"
	"github.com/felixgeelhaar/toolhost/infrastructure/source"
)

// mcpOptions holds options for the mcp command.
type mcpOptions struct {
	caller string
	addr   string
}

// newMCPCmd creates the mcp command.
func (a *App) newMCPCmd() *cobra.Command {
	opts := &mcpOptions{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tool registry over the Model Context Protocol",
		Long: `Serve registered tools to an MCP client over stdio (default) or HTTP.
Calls go through the same hook pipeline as every other dispatch. Tools
loaded or replaced by the watcher are registered with the MCP server as
they appear.

Examples:
  # Stdio server for a desktop client
  toolhost mcp -c toolhost.yaml

  # HTTP server with SSE
  toolhost mcp --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serveMCP(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.caller, "caller", "mcp", "Caller identity reported to hooks")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Serve HTTP on this address instead of stdio")

	return cmd
}

func (a *App) serveMCP(cmd *cobra.Command, opts *mcpOptions) error {
	ctx := cmd.Context()
	h, err := a.openHost(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close(context.WithoutCancel(ctx)) }()

	srv, err := mcp.NewServer(mcp.ServerConfig{
		Name:         "toolhost",
		Version:      Version,
		Description:  "Dynamic tool host",
		Instructions: "Tools may appear, change or disappear while the server runs.",
		Invoke: func(ctx context.Context, name string, args tool.Arguments) (any, error) {
			res, err := h.Dispatch(ctx, application.Request{Tool: name, Arguments: args, Caller: opts.caller})
			if err != nil {
				return nil, err
			}
			return res.Value, nil
		},
	})
	if err != nil {
		return err
	}
	srv.Use(mcp.Recover(), mcp.RequestID())

	srv.Sync(h.Registry().List())
	h.OnReload(func(source.Report) {
		srv.Sync(h.Registry().List())
	})
	a.reportLoadErrors(h)

	if opts.addr != "" {
		return srv.ServeHTTP(ctx, opts.addr)
	}
	return srv.ServeStdio(ctx)
}

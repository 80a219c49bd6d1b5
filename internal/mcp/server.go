// Package mcp exposes the running daemon to MCP clients over stdio.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/compwm/internal/ipc"
)

const (
	ServerName    = "compwm"
	ServerVersion = "0.1.0"
)

// Server is the MCP server for compwm introspection.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    ipc.API
	logger    *slog.Logger
}

// NewServer creates a server that forwards tool calls to daemon.
func NewServer(daemon ipc.API, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{daemon: daemon, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the managed display, the active plugin stack (bottom first), screen and window counts and the match prefixes currently understood.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_plugins",
		Description: "List active plugins in stack order with their dependencies and capabilities, followed by loadable plugins that are not active (position -1).",
	}, s.handleListPlugins)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_options",
		Description: "List the options of an active plugin in a scope (display, screens.N or screens.all) with type, current value, default and restriction.",
	}, s.handleGetOptions)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_option",
		Description: "Set an option of an active plugin. The value passes through the plugin's validating setter: out of range values are refused and restricted strings may be substituted. Returns whether the stored value changed and the stored value. Changes are not written to the config file.",
	}, s.handleSetOption)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "activate_plugin",
		Description: "Load a plugin and push it on top of the stack. Fails without side effects when a dependency is missing or initialisation fails.",
	}, s.handleActivatePlugin)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "deactivate_plugin",
		Description: "Pop a plugin off the stack. Only the plugin on top can be deactivated; core cannot be removed.",
	}, s.handleDeactivatePlugin)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List managed windows with type, state, class and geometry. Optionally filter by screen or match expression.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "eval_match",
		Description: "Evaluate a match expression against every managed window and return the matching window ids.",
	}, s.handleEvalMatch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "parse_match",
		Description: "Normalise a match expression without contacting the daemon. Useful to check quoting and grouping.",
	}, s.handleParseMatch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reload_config",
		Description: "Re-read the daemon's config file. An invalid file is rejected and the running configuration is kept.",
	}, s.handleReloadConfig)
}

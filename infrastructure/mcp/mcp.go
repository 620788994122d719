// Package mcp serves the tool registry over the Model Context Protocol.
// It wraps github.com/felixgeelhaar/mcp-go.
package mcp

import (
	mcpgo "github.com/felixgeelhaar/mcp-go"
)

type (
	// ServeOption configures server behavior.
	ServeOption = mcpgo.ServeOption

	// HTTPOption configures HTTP transport.
	HTTPOption = mcpgo.HTTPOption

	// Middleware wraps every MCP request.
	Middleware = mcpgo.Middleware
)

// Middleware constructors.
var (
	Recover   = mcpgo.Recover
	RequestID = mcpgo.RequestID
)

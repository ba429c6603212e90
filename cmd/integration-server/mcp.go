package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-training/integration-broker/pkg/broker"
	"github.com/go-training/integration-broker/pkg/core"
	"github.com/go-training/integration-broker/pkg/operation"

	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the underlying MCP server instance.
type MCPServer struct {
	server *server.MCPServer
}

// NewMCPServer creates an MCP server exposing the integration tools of
// registry. defaultProvider serves tool calls without a provider argument.
func NewMCPServer(registry *broker.Registry, defaultProvider string) *MCPServer {
	mcpServer := server.NewMCPServer(
		"integration-broker",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(operation.ToolHandlerMiddleware()),
	)

	operation.RegisterIntegrationTool(mcpServer, registry, defaultProvider)

	return &MCPServer{
		server: mcpServer,
	}
}

// ServeHTTP returns a streamable HTTP server that tags each request context
// with the caller's request ID.
func (s *MCPServer) ServeHTTP() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server,
		server.WithHeartbeatInterval(30*time.Second),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			reqID := core.RequestIDFromCtx(r.Context())
			if reqID == "" {
				reqID = r.Header.Get(requestIDHeader)
			}
			return core.WithRequestIDValue(ctx, reqID)
		}),
	)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.server, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return core.WithRequestID(ctx)
	}))
}

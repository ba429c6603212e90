package operation

import (
	"github.com/go-training/integration-broker/pkg/broker"
	"github.com/go-training/integration-broker/pkg/operation/integration"

	"github.com/mark3labs/mcp-go/server"
)

/*
RegisterIntegrationTool registers the broker tools to the specified MCPServer instance.

Parameters:
  - s: Pointer to the MCPServer instance where the tools will be registered.
  - registry: The brokers the tools dispatch to.
  - defaultProvider: Provider used when a tool call omits the provider argument.

Starting an authorization and consuming credentials change broker state and
are registered as write tools; listing items is a read tool.
*/
func RegisterIntegrationTool(s *server.MCPServer, registry *broker.Registry, defaultProvider string) {
	s.AddTools(IntegrationTools(registry, defaultProvider).Tools()...)
}

// IntegrationTools builds the tool set served by RegisterIntegrationTool.
func IntegrationTools(registry *broker.Registry, defaultProvider string) *Tool {
	h := integration.NewHandler(registry, defaultProvider)
	tool := &Tool{}

	tool.RegisterWrite(server.ServerTool{
		Tool:    integration.AuthorizeURLTool,
		Handler: h.HandleAuthorizeURL,
	})
	tool.RegisterWrite(server.ServerTool{
		Tool:    integration.ConsumeCredentialsTool,
		Handler: h.HandleConsumeCredentials,
	})
	tool.RegisterRead(server.ServerTool{
		Tool:    integration.ListItemsTool,
		Handler: h.HandleListItems,
	})

	return tool
}

/*
Tool manages collections of tools to be registered with an MCPServer.

Fields:
  - write: Stores all ServerTools registered as write operations.
  - read: Stores all ServerTools registered as read operations.
*/
type Tool struct {
	write []server.ServerTool
	read  []server.ServerTool
}

// RegisterWrite registers a ServerTool as a write operation.
func (t *Tool) RegisterWrite(s server.ServerTool) {
	t.write = append(t.write, s)
}

// RegisterRead registers a ServerTool as a read operation.
func (t *Tool) RegisterRead(s server.ServerTool) {
	t.read = append(t.read, s)
}

/*
Tools returns all registered ServerTools.

Returns:
  - []server.ServerTool: A slice containing all write and read tools, with write tools first followed by read tools.
*/
func (t *Tool) Tools() []server.ServerTool {
	tools := make([]server.ServerTool, 0, len(t.write)+len(t.read))
	tools = append(tools, t.write...)
	tools = append(tools, t.read...)
	return tools
}

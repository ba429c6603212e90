// Package integration provides MCP tools that drive the OAuth broker:
// starting an authorization, picking up credentials and listing items.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-training/integration-broker/pkg/broker"
	"github.com/go-training/integration-broker/pkg/core"

	"github.com/mark3labs/mcp-go/mcp"
)

// AuthorizeURLTool defines the MCP tool that starts an authorization flow.
var AuthorizeURLTool = mcp.NewTool("integration_authorize_url",
	mcp.WithDescription(`Integration Authorize URL Tool

Description:
  Records a pending authorization for the given user and organization and
  returns the provider consent URL. Open the URL in a browser; the provider
  redirects back to the broker callback when the user approves.

Input Parameters:
  - user_id (string, required): The user starting the flow.
  - org_id (string, required): The organization of the user.
  - provider (string, optional): Provider name, defaults to the server default.

Output:
  - The consent URL as text.`),
	mcp.WithString("user_id",
		mcp.Description("The user starting the authorization flow."),
		mcp.Required(),
	),
	mcp.WithString("org_id",
		mcp.Description("The organization of the user."),
		mcp.Required(),
	),
	mcp.WithString("provider",
		mcp.Description("Provider name, for example hubspot."),
	),
)

// ConsumeCredentialsTool defines the MCP tool that picks up credentials once.
var ConsumeCredentialsTool = mcp.NewTool("integration_consume_credentials",
	mcp.WithDescription(`Integration Consume Credentials Tool

Description:
  Returns the token response stored by a completed authorization and
  removes it. A second call for the same user and organization fails with
  CredentialsNotFound.

Input Parameters:
  - user_id (string, required)
  - org_id (string, required)
  - provider (string, optional)

Output:
  - The credential JSON as text.`),
	mcp.WithString("user_id",
		mcp.Description("The user that completed the authorization."),
		mcp.Required(),
	),
	mcp.WithString("org_id",
		mcp.Description("The organization of the user."),
		mcp.Required(),
	),
	mcp.WithString("provider",
		mcp.Description("Provider name, for example hubspot."),
	),
)

// ListItemsTool defines the MCP tool that lists normalized provider items.
var ListItemsTool = mcp.NewTool("integration_list_items",
	mcp.WithDescription(`Integration List Items Tool

Description:
  Walks every page of a provider resource with the given credential and
  returns the records as normalized integration items.

Input Parameters:
  - credentials (string, required): Credential JSON as returned by
    integration_consume_credentials.
  - type (string, optional): Resource type, defaults to the provider default.
  - provider (string, optional)

Output:
  - A JSON array of items. When a page fails the result is an error whose
    text carries the items gathered before the failure.`),
	mcp.WithString("credentials",
		mcp.Description("Credential JSON with an access_token."),
		mcp.Required(),
	),
	mcp.WithString("type",
		mcp.Description("Resource type, for example contacts."),
	),
	mcp.WithString("provider",
		mcp.Description("Provider name, for example hubspot."),
	),
)

// Handler serves the integration tools from a broker registry.
type Handler struct {
	registry        *broker.Registry
	defaultProvider string
}

// NewHandler returns a Handler. defaultProvider is used when a call omits
// the provider argument.
func NewHandler(registry *broker.Registry, defaultProvider string) *Handler {
	return &Handler{registry: registry, defaultProvider: defaultProvider}
}

// HandleAuthorizeURL handles integration_authorize_url.
func (h *Handler) HandleAuthorizeURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	args := req.GetArguments()

	b, err := h.broker(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	authURL, err := b.Authorize(ctx, stringArg(args, "user_id"), stringArg(args, "org_id"))
	if err != nil {
		logger.Error("Failed to start authorization", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(authURL), nil
}

// HandleConsumeCredentials handles integration_consume_credentials.
func (h *Handler) HandleConsumeCredentials(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	args := req.GetArguments()

	b, err := h.broker(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cred, err := b.ConsumeCredentials(ctx, stringArg(args, "user_id"), stringArg(args, "org_id"))
	if err != nil {
		logger.Info("Credential pickup failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// HandleListItems handles integration_list_items.
func (h *Handler) HandleListItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	args := req.GetArguments()

	b, err := h.broker(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cred, err := core.ParseCredential(stringArg(args, "credentials"))
	if err != nil {
		return mcp.NewToolResultError(core.WrapError(core.KindInvalidRequest, "invalid credentials", err).Error()), nil
	}

	list, err := b.ListItems(ctx, cred, stringArg(args, "type"))
	if list == nil {
		list = []core.IntegrationItem{}
	}
	if err != nil {
		logger.Error("Failed to list items", "error", err, "partial", len(list))
		data, mErr := json.Marshal(failure{Kind: core.KindOf(err), Detail: err.Error(), Items: list})
		if mErr != nil {
			return nil, errors.Join(err, mErr)
		}
		return mcp.NewToolResultError(string(data)), nil
	}

	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

type failure struct {
	Kind   core.Kind              `json:"kind"`
	Detail string                 `json:"detail"`
	Items  []core.IntegrationItem `json:"items"`
}

func (h *Handler) broker(args map[string]any) (*broker.Broker, error) {
	name := stringArg(args, "provider")
	if name == "" {
		name = h.defaultProvider
	}
	return h.registry.Get(name)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

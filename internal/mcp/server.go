package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"allycheck/internal/logging"
	"allycheck/internal/tools"
)

// NewServer exposes every tool of registry as an MCP tool.
func NewServer(registry *tools.Registry, version string) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "allycheck", Version: version}, nil)
	for _, t := range registry.All() {
		name := t.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        name,
			Description: t.Description,
			InputSchema: t.Schema.JSONSchema(),
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			args := map[string]any{}
			if req.Params != nil && len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return errorResult(fmt.Errorf("decode arguments: %w", err)), nil
				}
			}
			result, err := registry.Execute(ctx, name, args)
			if err != nil {
				logging.MCPWarn("Tool %s failed for MCP client: %v", name, err)
				return errorResult(err), nil
			}
			return &sdkmcp.CallToolResult{
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: result.Result}},
			}, nil
		})
	}
	return server
}

func errorResult(err error) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
	}
}

// ServeStdio runs the server over stdin/stdout until ctx is done.
func ServeStdio(ctx context.Context, server *sdkmcp.Server) error {
	logging.MCP("Serving tools over MCP stdio")
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}

// Package mcpserver exposes the Abrium API as MCP tools for LLMs.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Abrium tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("abrium", "1.0.0")
	client := NewAbriumClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolCheckTokenRisk, h.HandleCheckTokenRisk)
	s.AddTool(ToolListChains, h.HandleListChains)
	s.AddTool(ToolListTokens, h.HandleListTokens)

	return s
}

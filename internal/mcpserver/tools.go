package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Abrium MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolCheckTokenRisk = mcp.NewTool("check_token_risk",
	mcp.WithDescription(
		"Assess the safety of an ERC-20 token before interacting with it. "+
			"Returns a 0-100 risk score, an ALLOW/WARN/BLOCK decision, and the specific "+
			"risk flags found (honeypot, extreme taxes, blacklist controls, pausable transfers). "+
			"Use this before recommending a swap or approving a token."),
	mcp.WithNumber("chain_id",
		mcp.Required(),
		mcp.Description("EVM chain id the token lives on (e.g. 1 for Ethereum, 8453 for Base)")),
	mcp.WithString("token_address",
		mcp.Required(),
		mcp.Description("The token contract address (e.g. '0xdAC17F...')")),
)

var ToolListChains = mcp.NewTool("list_chains",
	mcp.WithDescription(
		"List the blockchain networks Abrium supports, with chain ids, native symbols, "+
			"RPC endpoints, and block explorers. Use this to resolve a chain name to its id."),
	mcp.WithBoolean("refresh",
		mcp.Description("Force a refresh from the upstream catalog instead of serving cached data")),
)

var ToolListTokens = mcp.NewTool("list_tokens",
	mcp.WithDescription(
		"List the known tokens on a chain with symbols, names, decimals, and contract addresses. "+
			"Use this to resolve a token symbol to its contract address before a risk check."),
	mcp.WithNumber("chain_id",
		mcp.Required(),
		mcp.Description("EVM chain id to list tokens for (e.g. 1 for Ethereum)")),
	mcp.WithBoolean("refresh",
		mcp.Description("Force a refresh from the upstream catalog instead of serving cached data")),
)

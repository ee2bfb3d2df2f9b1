package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *AbriumClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *AbriumClient) *Handlers {
	return &Handlers{client: client}
}

// HandleCheckTokenRisk assesses a token and formats the verdict.
func (h *Handlers) HandleCheckTokenRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chainID := req.GetInt("chain_id", 0)
	if chainID <= 0 {
		return mcp.NewToolResultError("chain_id is required and must be a positive integer"), nil
	}
	tokenAddress := req.GetString("token_address", "")
	if tokenAddress == "" {
		return mcp.NewToolResultError("token_address is required"), nil
	}

	raw, err := h.client.TokenRisk(ctx, int64(chainID), tokenAddress)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check token risk: %v", err)), nil
	}

	text, err := formatEvaluation(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse risk evaluation: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListChains lists supported chains.
func (h *Handlers) HandleListChains(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refresh := req.GetBool("refresh", false)

	raw, err := h.client.Chains(ctx, refresh)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list chains: %v", err)), nil
	}

	text, err := formatChainList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse chains: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListTokens lists the tokens on a chain.
func (h *Handlers) HandleListTokens(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chainID := req.GetInt("chain_id", 0)
	if chainID <= 0 {
		return mcp.NewToolResultError("chain_id is required and must be a positive integer"), nil
	}
	refresh := req.GetBool("refresh", false)

	raw, err := h.client.Tokens(ctx, int64(chainID), refresh)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tokens: %v", err)), nil
	}

	text, err := formatTokenList(raw, chainID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tokens: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

type evaluationInfo struct {
	Decision     string   `json:"decision"`
	Score        int      `json:"score"`
	Flags        []string `json:"flags"`
	Reasons      []string `json:"reasons"`
	TrustSignals []string `json:"trustSignals"`
	AlertLevel   string   `json:"alertLevel"`
	AlertTitle   string   `json:"alertTitle"`
	AlertMessage string   `json:"alertMessage"`
}

func formatEvaluation(raw json.RawMessage) (string, error) {
	var eval evaluationInfo
	if err := json.Unmarshal(raw, &eval); err != nil {
		return "", err
	}
	if eval.Decision == "" {
		return "", fmt.Errorf("unexpected risk response format")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Decision: %s (score %d/100)\n", eval.Decision, eval.Score)
	fmt.Fprintf(&sb, "%s: %s\n", eval.AlertTitle, eval.AlertMessage)

	if len(eval.Flags) > 0 {
		sb.WriteString("\nRisk flags:\n")
		for _, flag := range eval.Flags {
			fmt.Fprintf(&sb, "  - %s\n", flag)
		}
	}
	if len(eval.Reasons) > 0 {
		sb.WriteString("\nDetails:\n")
		for _, reason := range eval.Reasons {
			fmt.Fprintf(&sb, "  - %s\n", reason)
		}
	}
	if len(eval.TrustSignals) > 0 {
		sb.WriteString("\nTrust signals:\n")
		for _, signal := range eval.TrustSignals {
			fmt.Fprintf(&sb, "  - %s\n", signal)
		}
	}

	return sb.String(), nil
}

type chainInfo struct {
	ID           int64  `json:"id"`
	ChainKey     string `json:"chainKey"`
	Name         string `json:"name"`
	NativeSymbol string `json:"nativeSymbol"`
	ExplorerURL  string `json:"explorerUrl"`
	Scope        string `json:"scope"`
}

func formatChainList(raw json.RawMessage) (string, error) {
	var chains []chainInfo
	if err := json.Unmarshal(raw, &chains); err != nil {
		return "", fmt.Errorf("unexpected chains response format")
	}
	if len(chains) == 0 {
		return "No supported chains found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d chain(s):\n\n", len(chains))
	for i, chain := range chains {
		fmt.Fprintf(&sb, "%d. %s (id %d, key %q)\n", i+1, chain.Name, chain.ID, chain.ChainKey)
		fmt.Fprintf(&sb, "   Native: %s | Scope: %s\n", chain.NativeSymbol, chain.Scope)
		if chain.ExplorerURL != "" {
			fmt.Fprintf(&sb, "   Explorer: %s\n", chain.ExplorerURL)
		}
	}
	return sb.String(), nil
}

type tokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

const maxListedTokens = 100

func formatTokenList(raw json.RawMessage, chainID int) (string, error) {
	var tokens []tokenInfo
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return "", fmt.Errorf("unexpected tokens response format")
	}
	if len(tokens) == 0 {
		return fmt.Sprintf("No tokens found for chain %d.", chainID), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d token(s) on chain %d:\n\n", len(tokens), chainID)
	listed := tokens
	if len(listed) > maxListedTokens {
		listed = listed[:maxListedTokens]
	}
	for _, token := range listed {
		fmt.Fprintf(&sb, "%s  %s (%s, %d decimals)\n", token.Address, token.Symbol, token.Name, token.Decimals)
	}
	if len(tokens) > maxListedTokens {
		fmt.Fprintf(&sb, "\n... and %d more.\n", len(tokens)-maxListedTokens)
	}
	return sb.String(), nil
}

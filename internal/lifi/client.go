// Package lifi implements the client for the LI.FI catalog API, the source
// of chain and token metadata served by the catalog endpoints.
//
// The API is loose about field names across versions, so parsing accepts
// the known aliases for each field and drops entries missing the required
// ones rather than failing the whole listing.
package lifi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abrium/abrium/internal/retry"
)

const (
	zeroAddress  = "0x0000000000000000000000000000000000000000"
	apiKeyHeader = "x-lifi-api-key"

	maxAttempts = 3
	retryDelay  = 300 * time.Millisecond
)

var evmAddressRe = regexp.MustCompile(`^0x[a-f0-9]{40}$`)

// Chain is one chain listing.
type Chain struct {
	ChainID      int64    `json:"chainId"`
	ChainKey     string   `json:"chainKey"`
	Name         string   `json:"name"`
	NativeSymbol string   `json:"nativeSymbol"`
	LogoURI      string   `json:"logoUri,omitempty"`
	RPCURLs      []string `json:"rpcUrls"`
	ExplorerURL  string   `json:"explorerUrl,omitempty"`
	Mainnet      bool     `json:"mainnet"`
	ChainType    string   `json:"chainType,omitempty"`
}

// Token is one token listing. Address is lowercase hex, or "native" for
// the chain's gas token.
type Token struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoUri,omitempty"`
}

// APIError is a failure reported by (or on the way to) the LI.FI API.
// Status is the HTTP status, 0 for transport failures and timeouts.
type APIError struct {
	Status int
	msg    string
}

func (e *APIError) Error() string { return e.msg }

// Config holds the client configuration.
type Config struct {
	BaseURL string // e.g. "https://li.quest/v1"
	APIKey  string // optional
	Timeout time.Duration
}

// Client fetches chain and token metadata from the LI.FI API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a LI.FI client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Chains fetches all chains known to LI.FI.
func (c *Client) Chains(ctx context.Context) ([]Chain, error) {
	payload, err := c.getJSON(ctx, "/chains", nil)
	if err != nil {
		return nil, err
	}

	rows, _ := payload["chains"].([]any)
	chains := make([]Chain, 0, len(rows))
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		if chain, ok := parseChain(record); ok {
			chains = append(chains, chain)
		}
	}
	return chains, nil
}

// Tokens fetches the token listings for the given chain keys, deduplicated
// by (chain, address).
func (c *Client) Tokens(ctx context.Context, chainKeys []string) ([]Token, error) {
	normalized := normalizeChainKeys(chainKeys)
	if len(normalized) == 0 {
		return []Token{}, nil
	}

	payload, err := c.getJSON(ctx, "/tokens", url.Values{"chains": {strings.Join(normalized, ",")}})
	if err != nil {
		return nil, err
	}

	groups, _ := payload["tokens"].(map[string]any)

	deduped := make(map[string]Token)
	var order []string
	for _, groupKey := range sortedKeys(groups) {
		rows, ok := groups[groupKey].([]any)
		if !ok {
			continue
		}
		fallbackChainID, _ := strconv.ParseInt(strings.TrimSpace(groupKey), 10, 64)

		for _, row := range rows {
			record, ok := row.(map[string]any)
			if !ok {
				continue
			}
			token, ok := parseToken(record, fallbackChainID)
			if !ok {
				continue
			}

			key := fmt.Sprintf("%d:%s", token.ChainID, token.Address)
			existing, seen := deduped[key]
			if !seen {
				order = append(order, key)
			}
			// Listings without artwork yield to duplicates that have it.
			if !seen || (existing.LogoURI == "" && token.LogoURI != "") {
				deduped[key] = token
			}
		}
	}

	tokens := make([]Token, 0, len(order))
	for _, key := range order {
		tokens = append(tokens, deduped[key])
	}
	return tokens, nil
}

// getJSON performs one GET with retries. Responses with a 4xx status are
// not retried; the request will not get better.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload map[string]any
	err := retry.Do(ctx, maxAttempts, retryDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(&APIError{msg: fmt.Sprintf("lifi request failed: %v", err)})
		}
		if c.cfg.APIKey != "" {
			req.Header.Set(apiKeyHeader, c.cfg.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return &APIError{msg: fmt.Sprintf("lifi request timed out after %s", c.cfg.Timeout)}
			}
			return &APIError{msg: fmt.Sprintf("lifi request failed: %v", err)}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			message := strings.TrimSpace(string(body))
			if message == "" {
				message = fmt.Sprintf("LiFi API request failed (%d)", resp.StatusCode)
			}
			apiErr := &APIError{Status: resp.StatusCode, msg: message}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(apiErr)
			}
			return apiErr
		}

		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return &APIError{msg: "lifi returned an invalid response payload"}
		}
		return nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, &APIError{msg: fmt.Sprintf("lifi request failed: %v", err)}
	}
	return payload, nil
}

func parseChain(record map[string]any) (Chain, bool) {
	chainID := asInt64(firstOf(record, "id", "chainId"))
	chainKey := asString(firstOf(record, "key", "chainKey"))
	name := asString(firstOf(record, "name", "chainName"))
	if chainID == 0 || chainKey == "" || name == "" {
		return Chain{}, false
	}

	metamask, _ := record["metamask"].(map[string]any)
	rpcURLs := asStringSlice(metamask["rpcUrls"])
	explorerURLs := asStringSlice(metamask["blockExplorerUrls"])

	nativeSymbol := asString(record["coin"])
	if nativeSymbol == "" {
		if nativeToken, ok := record["nativeToken"].(map[string]any); ok {
			nativeSymbol = asString(nativeToken["symbol"])
		}
	}
	if nativeSymbol == "" {
		nativeSymbol = "NATIVE"
	}

	explorerURL := ""
	if len(explorerURLs) > 0 {
		explorerURL = explorerURLs[0]
	} else {
		explorerURL = asString(firstOf(record, "explorerUrl", "scanUrl"))
	}

	mainnet := true
	if b, ok := record["mainnet"].(bool); ok {
		mainnet = b
	}

	return Chain{
		ChainID:      chainID,
		ChainKey:     strings.ToLower(chainKey),
		Name:         name,
		NativeSymbol: nativeSymbol,
		LogoURI:      asString(firstOf(record, "logoURI", "logoUrl", "icon")),
		RPCURLs:      rpcURLs,
		ExplorerURL:  explorerURL,
		Mainnet:      mainnet,
		ChainType:    asString(record["chainType"]),
	}, true
}

func parseToken(record map[string]any, fallbackChainID int64) (Token, bool) {
	chainID := asInt64(record["chainId"])
	if chainID == 0 {
		chainID = fallbackChainID
	}
	address := asString(firstOf(record, "address", "tokenAddress"))
	symbol := asString(record["symbol"])
	name := asString(record["name"])
	decimals, hasDecimals := asNumber(record["decimals"])

	if chainID == 0 || address == "" || symbol == "" || name == "" || !hasDecimals {
		return Token{}, false
	}

	normalized, ok := normalizeTokenAddress(address)
	if !ok {
		return Token{}, false
	}

	truncated := int(decimals)
	if truncated < 0 {
		return Token{}, false
	}

	return Token{
		ChainID:  chainID,
		Address:  normalized,
		Symbol:   symbol,
		Name:     name,
		Decimals: truncated,
		LogoURI:  asString(firstOf(record, "logoURI", "logoUrl", "icon")),
	}, true
}

// normalizeTokenAddress lowercases an EVM address, mapping the zero address
// to the sentinel "native".
func normalizeTokenAddress(address string) (string, bool) {
	lowered := strings.ToLower(address)
	if lowered == zeroAddress {
		return "native", true
	}
	if !evmAddressRe.MatchString(lowered) {
		return "", false
	}
	return lowered, true
}

func normalizeChainKeys(chainKeys []string) []string {
	seen := make(map[string]struct{}, len(chainKeys))
	out := make([]string, 0, len(chainKeys))
	for _, key := range chainKeys {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func firstOf(record map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := record[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asInt64(v any) int64 {
	n, ok := asNumber(v)
	if !ok {
		return 0
	}
	return int64(n)
}

func asStringSlice(v any) []string {
	rows, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if s := asString(row); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

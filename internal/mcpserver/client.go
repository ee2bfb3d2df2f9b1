package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Abrium API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// AbriumClient is a pure HTTP client for the Abrium API.
type AbriumClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewAbriumClient creates a new client for the Abrium API.
func NewAbriumClient(cfg Config) *AbriumClient {
	return &AbriumClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope mirrors the API response wrapper.
type envelope struct {
	Error      bool            `json:"error"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
}

// doRequest makes a GET request to the API and returns the data field of
// the response envelope.
func (c *AbriumClient) doRequest(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		if env.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, env.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return env.Data, nil
}

// TokenRisk assesses a token's risk on a given chain.
func (c *AbriumClient) TokenRisk(ctx context.Context, chainID int64, tokenAddress string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("chainId", strconv.FormatInt(chainID, 10))
	q.Set("tokenAddress", tokenAddress)
	return c.doRequest(ctx, "/api/v1/risk/token", q)
}

// Chains lists the supported chains.
func (c *AbriumClient) Chains(ctx context.Context, refresh bool) (json.RawMessage, error) {
	q := url.Values{}
	if refresh {
		q.Set("refresh", "true")
	}
	return c.doRequest(ctx, "/api/v1/catalog/chains", q)
}

// Tokens lists the known tokens for a chain.
func (c *AbriumClient) Tokens(ctx context.Context, chainID int64, refresh bool) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("chainId", strconv.FormatInt(chainID, 10))
	if refresh {
		q.Set("refresh", "true")
	}
	return c.doRequest(ctx, "/api/v1/catalog/tokens", q)
}

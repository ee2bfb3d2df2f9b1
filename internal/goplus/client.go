// Package goplus implements the client for the GoPlus token security API.
//
// The client owns a bounded TTL cache of provider responses and coalesces
// concurrent lookups for the same (chain, token) pair onto a single outbound
// request. A per-chain circuit breaker fails fast during provider outages so
// callers fall through to their degraded path instead of queueing.
package goplus

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abrium/abrium/internal/circuitbreaker"
	"github.com/abrium/abrium/internal/metrics"
)

// Config holds the client configuration.
type Config struct {
	BaseURL          string // e.g. "https://api.gopluslabs.io/api/v1"
	AppKey           string // optional; enables the signed access-token mode together with AppSecret
	AppSecret        string
	Timeout          time.Duration
	CacheTTL         time.Duration // zero disables the response cache
	CacheMaxEntries  int
	BreakerThreshold int
	BreakerOpenFor   time.Duration
}

// Client performs token security lookups against the GoPlus API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *payloadCache
	flight     singleflight.Group
	breaker    *circuitbreaker.Breaker

	tokenMu      sync.Mutex
	accessToken  string
	tokenExpires time.Time
}

// New creates a GoPlus client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      newPayloadCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		breaker:    circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerOpenFor),
	}
}

// TokenSecurity fetches the risk payload for one token on one chain.
// The address is normalized to lowercase before cache lookup and request
// building. All failures are reported as *APIError.
func (c *Client) TokenSecurity(ctx context.Context, chainID int64, tokenAddress string) (map[string]any, error) {
	normalized := strings.ToLower(strings.TrimSpace(tokenAddress))
	key := fmt.Sprintf("%d:%s", chainID, normalized)

	if payload, ok := c.cache.get(key); ok {
		metrics.ProviderCacheHitsTotal.Inc()
		return payload, nil
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		// Detach from the first caller's cancellation: coalesced waiters
		// share one outcome, bounded by the client timeout alone.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()

		payload, err := c.fetch(fetchCtx, chainID, normalized, tokenAddress)
		if err != nil {
			return nil, err
		}
		c.cache.put(key, payload)
		return payload, nil
	})
	if shared {
		metrics.ProviderCoalescedTotal.Inc()
	}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, transportError("goplus request failed: %v", err)
	}
	return v.(map[string]any), nil
}

// fetch performs one outbound lookup guarded by the per-chain circuit breaker.
func (c *Client) fetch(ctx context.Context, chainID int64, normalized, original string) (map[string]any, error) {
	chainKey := strconv.FormatInt(chainID, 10)

	if !c.breaker.Allow(chainKey) {
		metrics.ProviderRequestsTotal.WithLabelValues("circuit_open").Inc()
		return nil, transportError("goplus circuit open for chain %d: too many recent failures", chainID)
	}

	payload, err := c.doFetch(ctx, chainKey, normalized, original)
	if err != nil {
		c.breaker.RecordFailure(chainKey)
		metrics.ProviderRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	c.breaker.RecordSuccess(chainKey)
	metrics.ProviderRequestsTotal.WithLabelValues("success").Inc()
	return payload, nil
}

func (c *Client) doFetch(ctx context.Context, chainKey, normalized, original string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/token_security/%s?%s",
		strings.TrimSuffix(c.cfg.BaseURL, "/"),
		url.PathEscape(chainKey),
		url.Values{"contract_addresses": {normalized}}.Encode(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, transportError("goplus request failed: %v", err)
	}

	if c.signedMode() {
		token, err := c.ensureAccessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, transportError("goplus request timed out after %s", c.cfg.Timeout)
		}
		return nil, transportError("goplus request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("goplus response read failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, transportError("goplus returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Code    any                       `json:"code"`
		Message string                    `json:"message"`
		Result  map[string]map[string]any `json:"result"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, transportError("goplus returned an invalid response payload")
	}

	code, hasCode := normalizeCode(body.Code)
	message := strings.TrimSpace(body.Message)

	if hasCode && code != CodeSuccess {
		// Includes code 2 (partial data): incomplete risk output is a failure.
		return nil, NewAPIError(code, message, "goplus did not return complete token risk data")
	}

	result, ok := body.Result[normalized]
	if !ok {
		// Some responses key the result by the caller's original casing.
		result, ok = body.Result[original]
	}
	if !ok || result == nil {
		return nil, NewAPIError(code, message, "goplus did not return token risk data")
	}

	return result, nil
}

func (c *Client) signedMode() bool {
	return c.cfg.AppKey != "" && c.cfg.AppSecret != ""
}

// ensureAccessToken returns a cached access token, requesting a fresh one
// through the sha1-signed handshake when missing or near expiry.
func (c *Client) ensureAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpires) {
		return c.accessToken, nil
	}

	now := strconv.FormatInt(time.Now().Unix(), 10)
	sum := sha1.Sum([]byte(c.cfg.AppKey + now + c.cfg.AppSecret))

	reqBody, _ := json.Marshal(map[string]string{
		"app_key": c.cfg.AppKey,
		"time":    now,
		"sign":    hex.EncodeToString(sum[:]),
	})

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(reqBody)))
	if err != nil {
		return "", transportError("goplus token request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError("goplus token request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
		Result  struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int64  `json:"expires_in"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", transportError("goplus token response was not valid JSON")
	}

	code, hasCode := normalizeCode(body.Code)
	if hasCode && code != CodeSuccess {
		return "", NewAPIError(code, strings.TrimSpace(body.Message), "goplus rejected the credential handshake")
	}
	if body.Result.AccessToken == "" {
		return "", transportError("goplus did not return an access token")
	}

	c.accessToken = body.Result.AccessToken
	// Renew a minute early to avoid using a token at the expiry boundary.
	expiresIn := time.Duration(body.Result.ExpiresIn) * time.Second
	if expiresIn > time.Minute {
		expiresIn -= time.Minute
	}
	c.tokenExpires = time.Now().Add(expiresIn)

	return c.accessToken, nil
}

// normalizeCode accepts the status code as a JSON number or numeric string.
func normalizeCode(v any) (int, bool) {
	switch code := v.(type) {
	case float64:
		return int(code), true
	case string:
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

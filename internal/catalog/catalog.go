// Package catalog serves chain and token metadata from a Postgres-backed
// read-through cache over the LI.FI API.
//
// Reads prefer the cache while it is fresh. A stale or empty cache triggers
// a sync; when the sync fails but stale data exists, the stale data is
// served. Metadata that is out of date beats an error page.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/abrium/abrium/internal/lifi"
	"github.com/abrium/abrium/internal/logging"
	"github.com/abrium/abrium/internal/metrics"
)

// ChainNotSupportedError reports a chain id LI.FI does not know about.
type ChainNotSupportedError struct {
	ChainID int64
}

func (e *ChainNotSupportedError) Error() string {
	return fmt.Sprintf("Chain %d is not supported by LiFi", e.ChainID)
}

// ChainItem is the API shape of one catalog chain.
type ChainItem struct {
	ID           int64    `json:"id"`
	ChainKey     string   `json:"chainKey"`
	Name         string   `json:"name"`
	RPCURLs      []string `json:"rpcUrls"`
	ExplorerURL  string   `json:"explorerUrl"`
	NativeSymbol string   `json:"nativeSymbol"`
	LogoURI      string   `json:"logoURI,omitempty"`
	Scope        string   `json:"scope"` // "production" or "development"
}

// TokenItem is the API shape of one catalog token.
type TokenItem struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"` // lowercase hex or "native"
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// Store persists the cached catalog. Replace operations upsert the given
// rows and prune everything older than syncedAt, atomically.
type Store interface {
	Chains(ctx context.Context) ([]lifi.Chain, time.Time, error)
	ReplaceChains(ctx context.Context, chains []lifi.Chain, syncedAt time.Time) error
	TokensByChain(ctx context.Context, chainID int64) ([]lifi.Token, time.Time, error)
	ReplaceTokens(ctx context.Context, chainID int64, tokens []lifi.Token, syncedAt time.Time) error
	ChainKey(ctx context.Context, chainID int64) (string, error)
}

// Client is the slice of the LI.FI client the catalog needs.
type Client interface {
	Chains(ctx context.Context) ([]lifi.Chain, error)
	Tokens(ctx context.Context, chainKeys []string) ([]lifi.Token, error)
}

// Service manages the catalog cache.
type Service struct {
	store     Store
	client    Client
	chainsTTL time.Duration
	tokensTTL time.Duration
}

// NewService creates a catalog service.
func NewService(store Store, client Client, chainsTTL, tokensTTL time.Duration) *Service {
	return &Service{store: store, client: client, chainsTTL: chainsTTL, tokensTTL: tokensTTL}
}

// Chains returns all cataloged chains, syncing from LI.FI when the cache
// is stale, empty, or a refresh is forced.
func (s *Service) Chains(ctx context.Context, forceRefresh bool) ([]ChainItem, error) {
	cached, latest, err := s.store.Chains(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cached chains: %w", err)
	}

	if !forceRefresh && len(cached) > 0 && s.fresh(latest, s.chainsTTL) {
		return mapChains(cached), nil
	}

	if err := s.syncChains(ctx); err != nil {
		if len(cached) > 0 {
			logging.FromContext(ctx).Warn("chain sync failed, serving stale catalog", "error", err)
			return mapChains(cached), nil
		}
		return nil, err
	}

	synced, _, err := s.store.Chains(ctx)
	if err != nil {
		return nil, fmt.Errorf("read synced chains: %w", err)
	}
	return mapChains(synced), nil
}

// Tokens returns the cataloged tokens for one chain, syncing from LI.FI
// when the cache is stale, empty, or a refresh is forced.
func (s *Service) Tokens(ctx context.Context, chainID int64, forceRefresh bool) ([]TokenItem, error) {
	cached, latest, err := s.store.TokensByChain(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("read cached tokens: %w", err)
	}

	if !forceRefresh && len(cached) > 0 && s.fresh(latest, s.tokensTTL) {
		return mapTokens(cached), nil
	}

	logger := logging.FromContext(ctx)

	chainKey, err := s.resolveChainKey(ctx, chainID)
	if err != nil {
		if len(cached) > 0 {
			logger.Warn("chain key resolution failed, serving stale tokens", "chain_id", chainID, "error", err)
			return mapTokens(cached), nil
		}
		return nil, err
	}

	if err := s.syncTokens(ctx, chainID, chainKey); err != nil {
		if len(cached) > 0 {
			logger.Warn("token sync failed, serving stale tokens", "chain_id", chainID, "error", err)
			return mapTokens(cached), nil
		}
		return nil, err
	}

	synced, _, err := s.store.TokensByChain(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("read synced tokens: %w", err)
	}
	return mapTokens(synced), nil
}

func (s *Service) fresh(latest time.Time, ttl time.Duration) bool {
	if latest.IsZero() || ttl <= 0 {
		return false
	}
	return time.Since(latest) <= ttl
}

func (s *Service) syncChains(ctx context.Context) error {
	remote, err := s.client.Chains(ctx)
	if err != nil {
		metrics.CatalogSyncsTotal.WithLabelValues("chains", "error").Inc()
		return err
	}
	if len(remote) == 0 {
		metrics.CatalogSyncsTotal.WithLabelValues("chains", "error").Inc()
		return fmt.Errorf("LiFi did not return any supported chains")
	}
	if err := s.store.ReplaceChains(ctx, remote, time.Now()); err != nil {
		metrics.CatalogSyncsTotal.WithLabelValues("chains", "error").Inc()
		return fmt.Errorf("replace cached chains: %w", err)
	}
	metrics.CatalogSyncsTotal.WithLabelValues("chains", "success").Inc()
	return nil
}

func (s *Service) syncTokens(ctx context.Context, chainID int64, chainKey string) error {
	remote, err := s.client.Tokens(ctx, []string{chainKey})
	if err != nil {
		metrics.CatalogSyncsTotal.WithLabelValues("tokens", "error").Inc()
		return err
	}

	// The listing can include other chains; keep only the requested one.
	tokens := make([]lifi.Token, 0, len(remote))
	for _, token := range remote {
		if token.ChainID == chainID {
			tokens = append(tokens, token)
		}
	}

	if err := s.store.ReplaceTokens(ctx, chainID, tokens, time.Now()); err != nil {
		metrics.CatalogSyncsTotal.WithLabelValues("tokens", "error").Inc()
		return fmt.Errorf("replace cached tokens: %w", err)
	}
	metrics.CatalogSyncsTotal.WithLabelValues("tokens", "success").Inc()
	return nil
}

// resolveChainKey maps a chain id onto its LI.FI key, syncing the chain
// listing once when the id is unknown before giving up.
func (s *Service) resolveChainKey(ctx context.Context, chainID int64) (string, error) {
	key, err := s.store.ChainKey(ctx, chainID)
	if err != nil {
		return "", fmt.Errorf("resolve chain key: %w", err)
	}
	if key != "" {
		return key, nil
	}

	if err := s.syncChains(ctx); err != nil {
		return "", err
	}

	key, err = s.store.ChainKey(ctx, chainID)
	if err != nil {
		return "", fmt.Errorf("resolve chain key: %w", err)
	}
	if key == "" {
		return "", &ChainNotSupportedError{ChainID: chainID}
	}
	return key, nil
}

func mapChains(chains []lifi.Chain) []ChainItem {
	items := make([]ChainItem, 0, len(chains))
	for _, chain := range chains {
		scope := "production"
		if !chain.Mainnet {
			scope = "development"
		}
		rpcURLs := chain.RPCURLs
		if rpcURLs == nil {
			rpcURLs = []string{}
		}
		items = append(items, ChainItem{
			ID:           chain.ChainID,
			ChainKey:     chain.ChainKey,
			Name:         chain.Name,
			RPCURLs:      rpcURLs,
			ExplorerURL:  chain.ExplorerURL,
			NativeSymbol: chain.NativeSymbol,
			LogoURI:      chain.LogoURI,
			Scope:        scope,
		})
	}
	return items
}

func mapTokens(tokens []lifi.Token) []TokenItem {
	items := make([]TokenItem, 0, len(tokens))
	for _, token := range tokens {
		items = append(items, TokenItem{
			ChainID:  token.ChainID,
			Address:  token.Address,
			Symbol:   token.Symbol,
			Name:     token.Name,
			Decimals: token.Decimals,
			LogoURI:  token.LogoURI,
		})
	}
	return items
}

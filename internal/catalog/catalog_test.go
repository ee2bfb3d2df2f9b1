package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrium/abrium/internal/lifi"
)

// stubClient returns fixed listings and counts calls.
type stubClient struct {
	chains      []lifi.Chain
	chainsErr   error
	tokens      []lifi.Token
	tokensErr   error
	chainsCalls int
	tokensCalls int
}

func (s *stubClient) Chains(_ context.Context) ([]lifi.Chain, error) {
	s.chainsCalls++
	return s.chains, s.chainsErr
}

func (s *stubClient) Tokens(_ context.Context, _ []string) ([]lifi.Token, error) {
	s.tokensCalls++
	return s.tokens, s.tokensErr
}

var _ Client = (*stubClient)(nil)

func testChains() []lifi.Chain {
	return []lifi.Chain{
		{ChainID: 1, ChainKey: "eth", Name: "Ethereum", NativeSymbol: "ETH", Mainnet: true},
		{ChainID: 11155111, ChainKey: "sep", Name: "Sepolia", NativeSymbol: "ETH", Mainnet: false},
	}
}

func testTokens() []lifi.Token {
	return []lifi.Token{
		{ChainID: 1, Address: "native", Symbol: "ETH", Name: "Ether", Decimals: 18},
		{ChainID: 1, Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		{ChainID: 137, Address: "native", Symbol: "MATIC", Name: "Matic", Decimals: 18},
	}
}

func TestChainsSyncsOnEmptyCache(t *testing.T) {
	client := &stubClient{chains: testChains()}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	chains, err := svc.Chains(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, 1, client.chainsCalls)

	assert.Equal(t, int64(1), chains[0].ID)
	assert.Equal(t, "production", chains[0].Scope)
	assert.Equal(t, "development", chains[1].Scope)
	assert.NotNil(t, chains[0].RPCURLs, "rpcUrls serializes as [] not null")
}

func TestChainsServedFromFreshCache(t *testing.T) {
	client := &stubClient{chains: testChains()}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	_, err := svc.Chains(context.Background(), false)
	require.NoError(t, err)
	_, err = svc.Chains(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, client.chainsCalls, "fresh cache is not re-synced")
}

func TestChainsForceRefreshResyncs(t *testing.T) {
	client := &stubClient{chains: testChains()}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	_, err := svc.Chains(context.Background(), false)
	require.NoError(t, err)
	_, err = svc.Chains(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, client.chainsCalls)
}

func TestChainsZeroTTLAlwaysSyncs(t *testing.T) {
	client := &stubClient{chains: testChains()}
	svc := NewService(NewMemoryStore(), client, 0, 0)

	for i := 0; i < 2; i++ {
		_, err := svc.Chains(context.Background(), false)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, client.chainsCalls)
}

func TestChainsServesStaleOnSyncFailure(t *testing.T) {
	store := NewMemoryStore()
	client := &stubClient{chains: testChains()}
	svc := NewService(store, client, 0, 0)

	_, err := svc.Chains(context.Background(), false)
	require.NoError(t, err)

	client.chainsErr = errors.New("lifi down")
	chains, err := svc.Chains(context.Background(), false)
	require.NoError(t, err, "stale data is served when the sync fails")
	assert.Len(t, chains, 2)
}

func TestChainsFailsWhenEmptyAndSyncFails(t *testing.T) {
	client := &stubClient{chainsErr: errors.New("lifi down")}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	_, err := svc.Chains(context.Background(), false)
	require.Error(t, err)
}

func TestChainsEmptyListingIsAFailure(t *testing.T) {
	client := &stubClient{chains: []lifi.Chain{}}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	_, err := svc.Chains(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not return any supported chains")
}

func TestTokensSyncFiltersOtherChains(t *testing.T) {
	client := &stubClient{chains: testChains(), tokens: testTokens()}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	tokens, err := svc.Tokens(context.Background(), 1, false)
	require.NoError(t, err)
	require.Len(t, tokens, 2, "tokens for other chains are dropped")
	for _, token := range tokens {
		assert.Equal(t, int64(1), token.ChainID)
	}
}

func TestTokensResolvesChainKeyViaChainSync(t *testing.T) {
	client := &stubClient{chains: testChains(), tokens: testTokens()}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	// Cold start: no chains cached, so resolving the key syncs them first.
	_, err := svc.Tokens(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, client.chainsCalls)
	assert.Equal(t, 1, client.tokensCalls)
}

func TestTokensUnknownChainIs404(t *testing.T) {
	client := &stubClient{chains: testChains()}
	svc := NewService(NewMemoryStore(), client, time.Hour, time.Hour)

	_, err := svc.Tokens(context.Background(), 99999, false)
	require.Error(t, err)

	var notSupported *ChainNotSupportedError
	require.ErrorAs(t, err, &notSupported)
	assert.Equal(t, int64(99999), notSupported.ChainID)
}

func TestTokensServesStaleOnSyncFailure(t *testing.T) {
	client := &stubClient{chains: testChains(), tokens: testTokens()}
	svc := NewService(NewMemoryStore(), client, time.Hour, 0)

	_, err := svc.Tokens(context.Background(), 1, false)
	require.NoError(t, err)

	client.tokensErr = errors.New("lifi down")
	tokens, err := svc.Tokens(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestTokensEmptyListingPrunesCache(t *testing.T) {
	store := NewMemoryStore()
	client := &stubClient{chains: testChains(), tokens: testTokens()}
	svc := NewService(store, client, time.Hour, 0)

	_, err := svc.Tokens(context.Background(), 1, false)
	require.NoError(t, err)

	client.tokens = nil
	tokens, err := svc.Tokens(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Empty(t, tokens, "a valid empty listing replaces the cache")
}

package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abrium/abrium/internal/lifi"
)

// MemoryStore is an in-memory Store for tests and database-less runs.
type MemoryStore struct {
	mu             sync.RWMutex
	chains         map[int64]lifi.Chain
	chainsSyncedAt time.Time
	tokens         map[int64]map[string]lifi.Token
	tokensSyncedAt map[int64]time.Time
}

// NewMemoryStore creates an in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chains:         make(map[int64]lifi.Chain),
		tokens:         make(map[int64]map[string]lifi.Token),
		tokensSyncedAt: make(map[int64]time.Time),
	}
}

// Chains returns the cached chains ordered by chain id.
func (m *MemoryStore) Chains(_ context.Context) ([]lifi.Chain, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chains := make([]lifi.Chain, 0, len(m.chains))
	for _, chain := range m.chains {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ChainID < chains[j].ChainID })
	return chains, m.chainsSyncedAt, nil
}

// ReplaceChains swaps in a fresh chain listing.
func (m *MemoryStore) ReplaceChains(_ context.Context, chains []lifi.Chain, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chains = make(map[int64]lifi.Chain, len(chains))
	for _, chain := range chains {
		m.chains[chain.ChainID] = chain
	}
	m.chainsSyncedAt = syncedAt
	return nil
}

// TokensByChain returns the cached tokens for one chain ordered by symbol.
func (m *MemoryStore) TokensByChain(_ context.Context, chainID int64) ([]lifi.Token, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byAddr := m.tokens[chainID]
	tokens := make([]lifi.Token, 0, len(byAddr))
	for _, token := range byAddr {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Symbol != tokens[j].Symbol {
			return tokens[i].Symbol < tokens[j].Symbol
		}
		return tokens[i].Address < tokens[j].Address
	})
	return tokens, m.tokensSyncedAt[chainID], nil
}

// ReplaceTokens swaps in a fresh token listing for one chain.
func (m *MemoryStore) ReplaceTokens(_ context.Context, chainID int64, tokens []lifi.Token, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(tokens) == 0 {
		delete(m.tokens, chainID)
		delete(m.tokensSyncedAt, chainID)
		return nil
	}

	byAddr := make(map[string]lifi.Token, len(tokens))
	for _, token := range tokens {
		byAddr[token.Address] = token
	}
	m.tokens[chainID] = byAddr
	m.tokensSyncedAt[chainID] = syncedAt
	return nil
}

// ChainKey resolves a chain id to its LI.FI key, "" when unknown.
func (m *MemoryStore) ChainKey(_ context.Context, chainID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.chains[chainID].ChainKey, nil
}

//go:build integration

package catalog

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/abrium/abrium/internal/lifi"
)

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		db.ExecContext(ctx, "DELETE FROM catalog_tokens")
		db.ExecContext(ctx, "DELETE FROM catalog_chains")
		db.Close()
	}

	return store, cleanup
}

func TestPostgresCatalog_ReplaceAndReadChains(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	syncedAt := time.Now()

	chains := []lifi.Chain{
		{ChainID: 1, ChainKey: "eth", Name: "Ethereum", NativeSymbol: "ETH",
			RPCURLs: []string{"https://rpc.example.com"}, ExplorerURL: "https://etherscan.io",
			Mainnet: true, ChainType: "EVM", LogoURI: "https://example.com/eth.png"},
		{ChainID: 137, ChainKey: "pol", Name: "Polygon", NativeSymbol: "MATIC", Mainnet: true},
	}
	if err := store.ReplaceChains(ctx, chains, syncedAt); err != nil {
		t.Fatalf("ReplaceChains failed: %v", err)
	}

	got, latest, err := store.Chains(ctx)
	if err != nil {
		t.Fatalf("Chains failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d chains, want 2", len(got))
	}
	if got[0].ChainID != 1 || got[1].ChainID != 137 {
		t.Errorf("chains not ordered by id: %v, %v", got[0].ChainID, got[1].ChainID)
	}
	if got[0].ExplorerURL != "https://etherscan.io" {
		t.Errorf("ExplorerURL = %q", got[0].ExplorerURL)
	}
	if len(got[0].RPCURLs) != 1 {
		t.Errorf("RPCURLs = %v", got[0].RPCURLs)
	}
	if latest.IsZero() {
		t.Error("latest updated_at not reported")
	}

	key, err := store.ChainKey(ctx, 137)
	if err != nil {
		t.Fatalf("ChainKey failed: %v", err)
	}
	if key != "pol" {
		t.Errorf("ChainKey = %q, want pol", key)
	}

	key, err = store.ChainKey(ctx, 99999)
	if err != nil {
		t.Fatalf("ChainKey failed: %v", err)
	}
	if key != "" {
		t.Errorf("ChainKey for unknown chain = %q, want empty", key)
	}
}

func TestPostgresCatalog_ReplaceChainsPrunesStale(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if err := store.ReplaceChains(ctx, []lifi.Chain{
		{ChainID: 1, ChainKey: "eth", Name: "Ethereum", NativeSymbol: "ETH"},
		{ChainID: 137, ChainKey: "pol", Name: "Polygon", NativeSymbol: "MATIC"},
	}, time.Now()); err != nil {
		t.Fatalf("ReplaceChains failed: %v", err)
	}

	// Second sync drops Polygon.
	if err := store.ReplaceChains(ctx, []lifi.Chain{
		{ChainID: 1, ChainKey: "eth", Name: "Ethereum", NativeSymbol: "ETH"},
	}, time.Now()); err != nil {
		t.Fatalf("ReplaceChains failed: %v", err)
	}

	got, _, err := store.Chains(ctx)
	if err != nil {
		t.Fatalf("Chains failed: %v", err)
	}
	if len(got) != 1 || got[0].ChainID != 1 {
		t.Errorf("stale chain not pruned: %+v", got)
	}
}

func TestPostgresCatalog_ReplaceAndReadTokens(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if err := store.ReplaceChains(ctx, []lifi.Chain{
		{ChainID: 1, ChainKey: "eth", Name: "Ethereum", NativeSymbol: "ETH"},
	}, time.Now()); err != nil {
		t.Fatalf("ReplaceChains failed: %v", err)
	}

	tokens := []lifi.Token{
		{ChainID: 1, Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		{ChainID: 1, Address: "native", Symbol: "ETH", Name: "Ether", Decimals: 18},
	}
	if err := store.ReplaceTokens(ctx, 1, tokens, time.Now()); err != nil {
		t.Fatalf("ReplaceTokens failed: %v", err)
	}

	got, latest, err := store.TokensByChain(ctx, 1)
	if err != nil {
		t.Fatalf("TokensByChain failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tokens, want 2", len(got))
	}
	if got[0].Symbol != "ETH" {
		t.Errorf("tokens not ordered by symbol: %q first", got[0].Symbol)
	}
	if latest.IsZero() {
		t.Error("latest updated_at not reported")
	}

	// An empty listing clears the chain.
	if err := store.ReplaceTokens(ctx, 1, nil, time.Now()); err != nil {
		t.Fatalf("ReplaceTokens failed: %v", err)
	}
	got, _, err = store.TokensByChain(ctx, 1)
	if err != nil {
		t.Fatalf("TokensByChain failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("tokens not cleared: %+v", got)
	}
}

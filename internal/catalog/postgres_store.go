package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abrium/abrium/internal/lifi"
)

// Rows per multi-row upsert statement.
const upsertBatchSize = 500

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed catalog store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the catalog tables
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_chains (
			chain_id       BIGINT PRIMARY KEY,
			chain_key      TEXT NOT NULL,
			name           TEXT NOT NULL,
			native_symbol  TEXT NOT NULL,
			logo_uri       TEXT,
			rpc_urls       JSONB NOT NULL DEFAULT '[]',
			explorer_url   TEXT,
			mainnet        BOOLEAN NOT NULL DEFAULT TRUE,
			chain_type     TEXT,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS catalog_tokens (
			chain_id       BIGINT NOT NULL REFERENCES catalog_chains(chain_id) ON DELETE CASCADE,
			address        TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			name           TEXT NOT NULL,
			decimals       INTEGER NOT NULL,
			logo_uri       TEXT,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chain_id, address)
		);
	`)
	return err
}

// Chains returns all cached chains and the newest updated_at
func (p *PostgresStore) Chains(ctx context.Context) ([]lifi.Chain, time.Time, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT chain_id, chain_key, name, native_symbol, logo_uri,
		       rpc_urls, explorer_url, mainnet, chain_type, updated_at
		FROM catalog_chains
		ORDER BY chain_id ASC
	`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var chains []lifi.Chain
	var latest time.Time
	for rows.Next() {
		var chain lifi.Chain
		var logoURI, explorerURL, chainType sql.NullString
		var rpcURLs []byte
		var updatedAt time.Time

		if err := rows.Scan(
			&chain.ChainID, &chain.ChainKey, &chain.Name, &chain.NativeSymbol, &logoURI,
			&rpcURLs, &explorerURL, &chain.Mainnet, &chainType, &updatedAt,
		); err != nil {
			return nil, time.Time{}, err
		}
		if err := json.Unmarshal(rpcURLs, &chain.RPCURLs); err != nil {
			return nil, time.Time{}, fmt.Errorf("decode rpc urls for chain %d: %w", chain.ChainID, err)
		}
		chain.LogoURI = logoURI.String
		chain.ExplorerURL = explorerURL.String
		chain.ChainType = chainType.String

		if updatedAt.After(latest) {
			latest = updatedAt
		}
		chains = append(chains, chain)
	}
	return chains, latest, rows.Err()
}

// ReplaceChains upserts the listing and prunes rows missing from it
func (p *PostgresStore) ReplaceChains(ctx context.Context, chains []lifi.Chain, syncedAt time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for offset := 0; offset < len(chains); offset += upsertBatchSize {
		end := offset + upsertBatchSize
		if end > len(chains) {
			end = len(chains)
		}
		if err := upsertChainBatch(ctx, tx, chains[offset:end], syncedAt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM catalog_chains WHERE updated_at < $1`, syncedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertChainBatch(ctx context.Context, tx *sql.Tx, chains []lifi.Chain, syncedAt time.Time) error {
	if len(chains) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO catalog_chains (
			chain_id, chain_key, name, native_symbol, logo_uri,
			rpc_urls, explorer_url, mainnet, chain_type, updated_at
		) VALUES `)

	args := make([]interface{}, 0, len(chains)*10)
	for i, chain := range chains {
		rpcURLs, err := json.Marshal(chain.RPCURLs)
		if err != nil {
			return fmt.Errorf("encode rpc urls for chain %d: %w", chain.ChainID, err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 10
		sb.WriteString("(")
		for j := 1; j <= 10; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			sb.WriteString("$" + strconv.Itoa(base+j))
		}
		sb.WriteString(")")
		args = append(args,
			chain.ChainID, chain.ChainKey, chain.Name, chain.NativeSymbol, nullable(chain.LogoURI),
			rpcURLs, nullable(chain.ExplorerURL), chain.Mainnet, nullable(chain.ChainType), syncedAt,
		)
	}

	sb.WriteString(`
		ON CONFLICT (chain_id) DO UPDATE SET
			chain_key = EXCLUDED.chain_key,
			name = EXCLUDED.name,
			native_symbol = EXCLUDED.native_symbol,
			logo_uri = EXCLUDED.logo_uri,
			rpc_urls = EXCLUDED.rpc_urls,
			explorer_url = EXCLUDED.explorer_url,
			mainnet = EXCLUDED.mainnet,
			chain_type = EXCLUDED.chain_type,
			updated_at = EXCLUDED.updated_at
	`)

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// TokensByChain returns the cached tokens for one chain and the newest updated_at
func (p *PostgresStore) TokensByChain(ctx context.Context, chainID int64) ([]lifi.Token, time.Time, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT chain_id, address, symbol, name, decimals, logo_uri, updated_at
		FROM catalog_tokens
		WHERE chain_id = $1
		ORDER BY symbol ASC, address ASC
	`, chainID)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var tokens []lifi.Token
	var latest time.Time
	for rows.Next() {
		var token lifi.Token
		var logoURI sql.NullString
		var updatedAt time.Time

		if err := rows.Scan(
			&token.ChainID, &token.Address, &token.Symbol, &token.Name,
			&token.Decimals, &logoURI, &updatedAt,
		); err != nil {
			return nil, time.Time{}, err
		}
		token.LogoURI = logoURI.String

		if updatedAt.After(latest) {
			latest = updatedAt
		}
		tokens = append(tokens, token)
	}
	return tokens, latest, rows.Err()
}

// ReplaceTokens upserts one chain's listing and prunes rows missing from it
func (p *PostgresStore) ReplaceTokens(ctx context.Context, chainID int64, tokens []lifi.Token, syncedAt time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if len(tokens) == 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM catalog_tokens WHERE chain_id = $1`, chainID); err != nil {
			return err
		}
		return tx.Commit()
	}

	for offset := 0; offset < len(tokens); offset += upsertBatchSize {
		end := offset + upsertBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := upsertTokenBatch(ctx, tx, tokens[offset:end], syncedAt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM catalog_tokens WHERE chain_id = $1 AND updated_at < $2`,
		chainID, syncedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertTokenBatch(ctx context.Context, tx *sql.Tx, tokens []lifi.Token, syncedAt time.Time) error {
	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO catalog_tokens (
			chain_id, address, symbol, name, decimals, logo_uri, updated_at
		) VALUES `)

	args := make([]interface{}, 0, len(tokens)*7)
	for i, token := range tokens {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		sb.WriteString("(")
		for j := 1; j <= 7; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			sb.WriteString("$" + strconv.Itoa(base+j))
		}
		sb.WriteString(")")
		args = append(args,
			token.ChainID, token.Address, token.Symbol, token.Name,
			token.Decimals, nullable(token.LogoURI), syncedAt,
		)
	}

	sb.WriteString(`
		ON CONFLICT (chain_id, address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			logo_uri = EXCLUDED.logo_uri,
			updated_at = EXCLUDED.updated_at
	`)

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// ChainKey resolves a chain id to its LI.FI key, "" when unknown
func (p *PostgresStore) ChainKey(ctx context.Context, chainID int64) (string, error) {
	var key string
	err := p.db.QueryRowContext(ctx,
		`SELECT chain_key FROM catalog_chains WHERE chain_id = $1`, chainID).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

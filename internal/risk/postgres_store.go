package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the risk_assessments table
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS risk_assessments (
			id               VARCHAR(64) PRIMARY KEY,
			chain_id         BIGINT NOT NULL,
			token_address    VARCHAR(66) NOT NULL,
			score            INTEGER NOT NULL,
			decision         VARCHAR(10) NOT NULL CHECK (decision IN ('ALLOW', 'WARN', 'BLOCK')),
			flags            JSONB NOT NULL DEFAULT '[]',
			reasons          JSONB NOT NULL DEFAULT '[]',
			provider_payload JSONB NOT NULL DEFAULT '{}',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_risk_assessments_lookup
			ON risk_assessments(chain_id, token_address, created_at DESC);
	`)
	return err
}

// FindRecent returns the newest assessment for the pair no older than ttl
func (p *PostgresStore) FindRecent(ctx context.Context, chainID int64, tokenAddress string, ttl time.Duration) (*Assessment, error) {
	if ttl <= 0 {
		return nil, nil
	}

	a := &Assessment{}
	var flags, reasons, payload []byte

	err := p.db.QueryRowContext(ctx, `
		SELECT id, chain_id, token_address, score, decision,
		       flags, reasons, provider_payload, created_at
		FROM risk_assessments
		WHERE chain_id = $1
		  AND token_address = $2
		  AND created_at > NOW() - make_interval(secs => $3)
		ORDER BY created_at DESC
		LIMIT 1
	`, chainID, tokenAddress, ttl.Seconds()).Scan(
		&a.ID, &a.ChainID, &a.TokenAddress, &a.Score, &a.Decision,
		&flags, &reasons, &payload, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(flags, &a.Flags); err != nil {
		return nil, fmt.Errorf("decode flags for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(reasons, &a.Reasons); err != nil {
		return nil, fmt.Errorf("decode reasons for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(payload, &a.ProviderPayload); err != nil {
		return nil, fmt.Errorf("decode provider payload for %s: %w", a.ID, err)
	}

	return a, nil
}

// Persist stores an assessment
func (p *PostgresStore) Persist(ctx context.Context, a *Assessment) error {
	flags, err := json.Marshal(a.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	reasons, err := json.Marshal(a.Reasons)
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	payload, err := json.Marshal(a.ProviderPayload)
	if err != nil {
		return fmt.Errorf("encode provider payload: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (
			id, chain_id, token_address, score, decision,
			flags, reasons, provider_payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.ChainID, a.TokenAddress, a.Score, a.Decision, flags, reasons, payload)
	return err
}

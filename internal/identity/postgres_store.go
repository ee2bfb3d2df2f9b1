package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abrium/abrium/internal/logging"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed identity store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the identity tables
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			dynamic_user_id  TEXT PRIMARY KEY,
			email            TEXT,
			wallet_address   TEXT,
			auth_provider    TEXT,
			is_deleted       BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at       TIMESTAMPTZ,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_unique
			ON users (lower(email)) WHERE email IS NOT NULL;

		CREATE TABLE IF NOT EXISTS user_wallets (
			dynamic_user_id  TEXT NOT NULL REFERENCES users(dynamic_user_id) ON DELETE CASCADE,
			wallet_address   TEXT NOT NULL,
			chain            TEXT,
			provider         TEXT,
			is_primary       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (dynamic_user_id, wallet_address)
		);

		CREATE TABLE IF NOT EXISTS webhook_events (
			event_id     TEXT PRIMARY KEY,
			event_type   TEXT NOT NULL,
			payload      JSONB NOT NULL,
			received_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// ProcessEvent records the event and applies its user and wallet effects
// in one transaction. A previously recorded event id commits nothing and
// reports duplicate=true.
func (p *PostgresStore) ProcessEvent(ctx context.Context, event *Event) (bool, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return false, fmt.Errorf("encode webhook payload: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, event_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`, event.ID, event.Type, payload)
	if err != nil {
		return false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		return true, tx.Commit()
	}

	if event.User != nil {
		if err := p.applyUser(ctx, tx, event); err != nil {
			return false, err
		}
	}

	return false, tx.Commit()
}

func (p *PostgresStore) applyUser(ctx context.Context, tx *sql.Tx, event *Event) error {
	user := event.User

	email := user.Email
	if email != "" {
		// The email column is unique; when another user already owns this
		// address, keep their mapping and sync everything else.
		var owner string
		err := tx.QueryRowContext(ctx, `
			SELECT dynamic_user_id FROM users
			WHERE lower(email) = lower($1)
			LIMIT 1
		`, email).Scan(&owner)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if owner != "" && owner != user.DynamicUserID {
			logging.FromContext(ctx).Warn("webhook email conflict, skipping email update",
				"event_id", event.ID,
				"dynamic_user_id", user.DynamicUserID,
				"owner_dynamic_user_id", owner)
			email = ""
		}
	}

	walletAddress := ""
	if len(user.Wallets) > 0 {
		walletAddress = user.Wallets[0].Address
	}

	// Any event about a user revives them; the deleted branch below
	// re-marks deletion for user.deleted events.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (dynamic_user_id, email, wallet_address, auth_provider, is_deleted, deleted_at)
		VALUES ($1, $2, $3, $4, FALSE, NULL)
		ON CONFLICT (dynamic_user_id) DO UPDATE SET
			email = COALESCE(EXCLUDED.email, users.email),
			wallet_address = COALESCE(EXCLUDED.wallet_address, users.wallet_address),
			auth_provider = COALESCE(EXCLUDED.auth_provider, users.auth_provider),
			is_deleted = FALSE,
			deleted_at = NULL,
			updated_at = NOW()
	`, user.DynamicUserID, nullable(email), nullable(walletAddress), nullable(user.AuthProvider))
	if err != nil {
		return err
	}

	switch {
	case strings.Contains(event.Type, "user.deleted"):
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
			WHERE dynamic_user_id = $1
		`, user.DynamicUserID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM user_wallets WHERE dynamic_user_id = $1
		`, user.DynamicUserID); err != nil {
			return err
		}

	case strings.Contains(event.Type, "wallet.unlinked"):
		for _, wallet := range user.Wallets {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM user_wallets
				WHERE dynamic_user_id = $1 AND wallet_address = $2
			`, user.DynamicUserID, wallet.Address); err != nil {
				return err
			}
		}

	default:
		for _, wallet := range user.Wallets {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_wallets (dynamic_user_id, wallet_address, chain, provider, is_primary)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (dynamic_user_id, wallet_address) DO UPDATE SET
					chain = EXCLUDED.chain,
					provider = EXCLUDED.provider,
					is_primary = EXCLUDED.is_primary,
					updated_at = NOW()
			`, user.DynamicUserID, wallet.Address,
				nullable(wallet.Chain), nullable(wallet.Provider), wallet.IsPrimary); err != nil {
				return err
			}
		}
	}

	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

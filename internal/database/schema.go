package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// schema is applied in order on startup; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		user_id    TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		version    BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id                 UUID PRIMARY KEY,
		user_id            TEXT NOT NULL REFERENCES accounts (user_id),
		amount             BIGINT NOT NULL,
		type               TEXT NOT NULL CHECK (type IN ('purchase_currency', 'unlock_content', 'admin_adjustment', 'daily_reward')),
		description        TEXT NOT NULL,
		related_content_id TEXT,
		actor              TEXT NOT NULL,
		idempotency_key    TEXT,
		balance_after      BIGINT NOT NULL CHECK (balance_after >= 0),
		created_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_user_created_idx ON ledger_entries (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_created_idx ON ledger_entries (created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_idempotency_idx
		ON ledger_entries (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	// ledger entries are append-only
	`CREATE OR REPLACE RULE ledger_entries_no_update AS ON UPDATE TO ledger_entries DO INSTEAD NOTHING`,
	`CREATE OR REPLACE RULE ledger_entries_no_delete AS ON DELETE TO ledger_entries DO INSTEAD NOTHING`,
	`CREATE TABLE IF NOT EXISTS content_items (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		content_url  TEXT NOT NULL,
		unlock_cost  BIGINT NOT NULL CHECK (unlock_cost >= 0),
		access_count BIGINT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS entitlements (
		user_id     TEXT NOT NULL REFERENCES accounts (user_id),
		content_id  TEXT NOT NULL REFERENCES content_items (id),
		unlocked_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, content_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id              UUID PRIMARY KEY,
		title           TEXT NOT NULL,
		message         TEXT NOT NULL,
		type            TEXT NOT NULL CHECK (type IN ('info', 'success', 'warning', 'error')),
		target_global   BOOLEAN NOT NULL,
		target_user_ids TEXT[] NOT NULL DEFAULT '{}',
		link            TEXT,
		created_at      TIMESTAMPTZ NOT NULL,
		read_by         TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_created_idx ON notifications (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS notifications_targets_idx ON notifications USING GIN (target_user_ids)`,
	`CREATE TABLE IF NOT EXISTS legacy_transactions (
		id          TEXT PRIMARY KEY,
		payload     JSONB NOT NULL,
		imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the ledger tables if they do not exist
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	log.Println("Database schema ensured")
	return nil
}

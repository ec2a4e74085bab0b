// Package migrations applies the engine's database schema. Statements are
// idempotent so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS family_members (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount BIGINT NOT NULL,
		balance BIGINT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		related_task_id TEXT NOT NULL DEFAULT '',
		related_reward_id TEXT NOT NULL DEFAULT '',
		transfer_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_account
		ON ledger_transactions (account_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		title TEXT NOT NULL,
		point_value BIGINT NOT NULL,
		assignee_id TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		status TEXT NOT NULL,
		due_date TIMESTAMPTZ,
		requires_proof BOOLEAN NOT NULL DEFAULT FALSE,
		proof TEXT NOT NULL DEFAULT '',
		last_completed TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rewards (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		point_cost BIGINT NOT NULL,
		validity_days INTEGER NOT NULL DEFAULT 0,
		max_redemptions_per_week INTEGER NOT NULL DEFAULT 0,
		total_redemptions BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reward_redemptions (
		id TEXT PRIMARY KEY,
		reward_id TEXT NOT NULL,
		snapshot JSONB NOT NULL,
		redeemed_by TEXT NOT NULL,
		redeemed_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ,
		used_at TIMESTAMPTZ,
		used BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reward_redemptions_account
		ON reward_redemptions (redeemed_by, reward_id, redeemed_at)`,
	`CREATE TABLE IF NOT EXISTS trees (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		type TEXT NOT NULL,
		current_water BIGINT NOT NULL DEFAULT 0,
		fully_grown BOOLEAN NOT NULL DEFAULT FALSE,
		planted_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tree_collections (
		owner_id TEXT PRIMARY KEY,
		entries JSONB NOT NULL,
		level INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feature_settings (
		family_id TEXT PRIMARY KEY,
		enabled JSONB NOT NULL,
		preset TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feature_subscriptions (
		family_id TEXT PRIMARY KEY,
		grants JSONB NOT NULL,
		test_mode BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feature_requests (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		feature TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	)`,
}

// Apply runs every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}

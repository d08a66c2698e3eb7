package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// schema carries the uniqueness constraints the ledger's correctness rests
// on: one transaction row per correlation id, at most one pending one-time
// transaction per (subscriber, plan), at most one live card per
// (subscriber, provider), and a masked number live under only one
// subscriber per provider.
const schema = `
CREATE TABLE IF NOT EXISTS plans (
    id            UUID PRIMARY KEY,
    name          TEXT NOT NULL,
    selected_name TEXT,
    price         BIGINT NOT NULL,
    duration_days INT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subscribers (
    id                  UUID PRIMARY KEY,
    telegram_id         BIGINT NOT NULL UNIQUE,
    username            TEXT,
    subscription_type   TEXT,
    subscription_start  TIMESTAMPTZ,
    subscription_end    TIMESTAMPTZ,
    is_active           BOOLEAN NOT NULL DEFAULT FALSE,
    has_received_free_bonus BOOLEAN NOT NULL DEFAULT FALSE,
    free_bonus_received_at  TIMESTAMPTZ,
    had_paid_before_bonus   BOOLEAN NOT NULL DEFAULT FALSE,
    plan_ids            TEXT[] NOT NULL DEFAULT '{}',
    is_kicked_out       BOOLEAN NOT NULL DEFAULT FALSE,
    active_invite_link  TEXT,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscribers_sub_end ON subscribers (subscription_end);

CREATE TABLE IF NOT EXISTS cards (
    id            UUID PRIMARY KEY,
    subscriber_id UUID NOT NULL REFERENCES subscribers(id),
    telegram_id   BIGINT NOT NULL,
    username      TEXT,
    plan_id       UUID REFERENCES plans(id),
    provider      TEXT NOT NULL,
    masked_pan    TEXT NOT NULL,
    token         TEXT NOT NULL,
    expiry        TEXT,
    verified      BOOLEAN NOT NULL DEFAULT FALSE,
    verified_at   TIMESTAMPTZ,
    is_deleted    BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at    TIMESTAMPTZ,
    uzcard_meta   JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_cards_subscriber_provider_live
    ON cards (subscriber_id, provider) WHERE NOT is_deleted;
CREATE UNIQUE INDEX IF NOT EXISTS uq_cards_masked_pan_live
    ON cards (provider, masked_pan) WHERE NOT is_deleted;

CREATE TABLE IF NOT EXISTS transactions (
    id            UUID PRIMARY KEY,
    trans_id      TEXT NOT NULL UNIQUE,
    provider      TEXT NOT NULL,
    payment_type  TEXT NOT NULL,
    amount        BIGINT NOT NULL,
    status        TEXT NOT NULL,
    state         INT NOT NULL,
    subscriber_id UUID NOT NULL REFERENCES subscribers(id),
    plan_id       UUID NOT NULL REFERENCES plans(id),
    reason        INT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    perform_time  TIMESTAMPTZ,
    cancel_time   TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_pending_onetime
    ON transactions (subscriber_id, plan_id)
    WHERE status = 'pending' AND payment_type = 'onetime';
CREATE INDEX IF NOT EXISTS idx_transactions_provider_created
    ON transactions (provider, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_pending_created
    ON transactions (created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS subscription_periods (
    id            UUID PRIMARY KEY,
    subscriber_id UUID NOT NULL REFERENCES subscribers(id),
    telegram_id   BIGINT NOT NULL,
    plan_id       UUID NOT NULL REFERENCES plans(id),
    plan_name     TEXT,
    type          TEXT NOT NULL,
    start_date    TIMESTAMPTZ NOT NULL,
    end_date      TIMESTAMPTZ NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    auto_renew    BOOLEAN NOT NULL DEFAULT FALSE,
    status        TEXT NOT NULL DEFAULT 'active',
    paid_amount   BIGINT NOT NULL DEFAULT 0,
    paid_by       TEXT,
    card_id       UUID,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_periods_subscriber_active ON subscription_periods (subscriber_id, is_active);
CREATE INDEX IF NOT EXISTS idx_periods_end_date ON subscription_periods (end_date);
`

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

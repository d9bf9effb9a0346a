package postgres

import (
	"context"
	"errors"
	"fmt"

	"commerce-backend/internal/core/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Monetary columns hold integer minor units (cents).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id              UUID PRIMARY KEY,
		user_id         TEXT NOT NULL,
		address_id      TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		payment_status  TEXT NOT NULL,
		payment_method  TEXT NOT NULL DEFAULT '',
		payment_ref     TEXT NOT NULL DEFAULT '',
		total_cents     BIGINT NOT NULL CHECK (total_cents >= 0),
		net_cents       BIGINT NOT NULL CHECK (net_cents >= 0 AND net_cents <= total_cents),
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		delivered_at    TIMESTAMPTZ,
		cancelled_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id        UUID NOT NULL REFERENCES orders (id),
		position        INTEGER NOT NULL,
		product_id      TEXT NOT NULL,
		name            TEXT NOT NULL,
		price_cents     BIGINT NOT NULL,
		discount_cents  BIGINT NOT NULL,
		quantity        INTEGER NOT NULL CHECK (quantity > 0),
		status          TEXT NOT NULL,
		cancel_reason   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		user_id         TEXT PRIMARY KEY,
		balance_cents   BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id              UUID PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES wallets (user_id),
		direction       TEXT NOT NULL CHECK (direction IN ('credit', 'debit')),
		amount_cents    BIGINT NOT NULL CHECK (amount_cents > 0),
		reason          TEXT NOT NULL,
		order_id        TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_user_idx ON wallet_transactions (user_id, created_at DESC)`,
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logger.Named("postgres").Info("Connected to PostgreSQL",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
	)
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// InTx runs fn in a transaction, committing when fn returns nil.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, pool, fn)
}

// IsCheckViolation reports whether err was raised by a CHECK constraint.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

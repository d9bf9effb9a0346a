package adapters

import (
	"context"
	"fmt"

	"commerce-backend/internal/core/postgres"
	"commerce-backend/internal/features/wallet/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository stores wallets and their transactions in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Apply implements ports.LedgerRepository. The wallet row is locked for the
// duration of the transaction so concurrent applies for a user serialize.
func (r *PostgresRepository) Apply(ctx context.Context, txn domain.Transaction) (decimal.Decimal, error) {
	var next decimal.Decimal

	err := postgres.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
			txn.UserID,
		); err != nil {
			return fmt.Errorf("failed to ensure wallet: %w", err)
		}

		var cents int64
		if err := tx.QueryRow(ctx,
			`SELECT balance_cents FROM wallets WHERE user_id = $1 FOR UPDATE`,
			txn.UserID,
		).Scan(&cents); err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		var err error
		next, err = txn.ApplyTo(postgres.FromCents(cents))
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE wallets SET balance_cents = $2, updated_at = now() WHERE user_id = $1`,
			txn.UserID, postgres.ToCents(next),
		); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO wallet_transactions (id, user_id, direction, amount_cents, reason, order_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			txn.ID, txn.UserID, string(txn.Direction), postgres.ToCents(txn.Amount), txn.Reason, txn.OrderID, txn.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

// Balance implements ports.LedgerRepository.
func (r *PostgresRepository) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var cents int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT balance_cents FROM wallets WHERE user_id = $1), 0)`,
		userID,
	).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return postgres.FromCents(cents), nil
}

// History implements ports.LedgerRepository.
func (r *PostgresRepository) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, direction, amount_cents, reason, order_id, created_at
		 FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var history []domain.Transaction
	for rows.Next() {
		var (
			txn       domain.Transaction
			direction string
			cents     int64
		)
		if err := rows.Scan(&txn.ID, &txn.UserID, &direction, &cents, &txn.Reason, &txn.OrderID, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Direction = domain.Direction(direction)
		txn.Amount = postgres.FromCents(cents)
		history = append(history, txn)
	}
	return history, rows.Err()
}

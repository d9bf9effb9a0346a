package ports

import (
	"context"

	"commerce-backend/internal/features/wallet/domain"

	"github.com/shopspring/decimal"
)

// LedgerRepository persists wallet balances and their transaction log.
type LedgerRepository interface {
	// Apply appends txn and adjusts the cached balance as one atomic unit,
	// returning the new balance. A debit beyond the balance fails with
	// apperr.ErrInsufficientFunds and changes nothing.
	Apply(ctx context.Context, txn domain.Transaction) (decimal.Decimal, error)
	// Balance returns the cached balance; zero for users without a wallet.
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	// History returns the user's transactions, newest first.
	History(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// LedgerService is the wallet API used by settlement and the HTTP layer.
type LedgerService interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reason, orderID string) (decimal.Decimal, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, reason, orderID string) (decimal.Decimal, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Wallet(ctx context.Context, userID string) (*domain.Wallet, error)
}

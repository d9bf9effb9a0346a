package service

import (
	"context"
	"fmt"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/logger"
	"commerce-backend/internal/features/wallet/domain"
	"commerce-backend/internal/features/wallet/ports"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService moves money in and out of user wallets.
type LedgerService struct {
	repo ports.LedgerRepository
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(repo ports.LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

// Credit adds amount to the user's wallet and returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason, orderID string) (decimal.Decimal, error) {
	return s.apply(ctx, userID, domain.Credit, amount, reason, orderID)
}

// Debit removes amount from the user's wallet and returns the new balance.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount decimal.Decimal, reason, orderID string) (decimal.Decimal, error) {
	return s.apply(ctx, userID, domain.Debit, amount, reason, orderID)
}

func (s *LedgerService) apply(ctx context.Context, userID string, dir domain.Direction, amount decimal.Decimal, reason, orderID string) (decimal.Decimal, error) {
	txn, err := domain.NewTransaction(userID, dir, amount, reason, orderID)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := s.repo.Apply(ctx, txn)
	if err != nil {
		return decimal.Zero, err
	}

	logger.FromContext(ctx).Named("wallet").Info("Ledger transaction applied",
		zap.String("user_id", userID),
		zap.String("direction", string(dir)),
		zap.String("amount", txn.Amount.StringFixed(2)),
		zap.String("reason", reason),
		zap.String("order_id", orderID),
		zap.String("balance", balance.StringFixed(2)),
	)
	return balance, nil
}

// Balance returns the user's spendable balance.
func (s *LedgerService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, fmt.Errorf("%w: userId is required", apperr.ErrValidation)
	}
	return s.repo.Balance(ctx, userID)
}

// Wallet returns the balance and transaction history of a user.
func (s *LedgerService) Wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []domain.Transaction{}
	}

	return &domain.Wallet{
		UserID:       userID,
		Balance:      balance,
		Transactions: history,
	}, nil
}

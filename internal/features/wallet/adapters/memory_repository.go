package adapters

import (
	"context"
	"sync"

	"commerce-backend/internal/features/wallet/domain"

	"github.com/shopspring/decimal"
)

// MemoryRepository is an in-process LedgerRepository.
type MemoryRepository struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	history  map[string][]domain.Transaction
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		balances: map[string]decimal.Decimal{},
		history:  map[string][]domain.Transaction{},
	}
}

// Apply implements ports.LedgerRepository.
func (r *MemoryRepository) Apply(_ context.Context, txn domain.Transaction) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := txn.ApplyTo(r.balances[txn.UserID])
	if err != nil {
		return decimal.Zero, err
	}

	r.balances[txn.UserID] = next
	r.history[txn.UserID] = append(r.history[txn.UserID], txn)
	return next, nil
}

// Balance implements ports.LedgerRepository.
func (r *MemoryRepository) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID], nil
}

// History implements ports.LedgerRepository.
func (r *MemoryRepository) History(_ context.Context, userID string) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.history[userID]
	out := make([]domain.Transaction, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

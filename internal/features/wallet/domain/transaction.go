package domain

import (
	"fmt"
	"time"

	"commerce-backend/internal/core/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tells whether a transaction adds to or removes from the balance.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Direction Direction       `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	OrderID   string          `json:"orderId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Wallet is a user's balance together with the history that produced it.
type Wallet struct {
	UserID       string          `json:"userId"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
}

// NewTransaction validates and stamps a ledger entry. Amounts are kept to cents.
func NewTransaction(userID string, dir Direction, amount decimal.Decimal, reason, orderID string) (Transaction, error) {
	if userID == "" {
		return Transaction{}, fmt.Errorf("%w: userId is required", apperr.ErrValidation)
	}
	if dir != Credit && dir != Debit {
		return Transaction{}, fmt.Errorf("%w: unknown direction %q", apperr.ErrValidation, dir)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: amount must be greater than zero", apperr.ErrValidation)
	}

	return Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Direction: dir,
		Amount:    amount,
		Reason:    reason,
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Signed returns the amount with the sign of its direction.
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ApplyTo returns the balance after t. A debit may not take the balance below zero.
func (t Transaction) ApplyTo(balance decimal.Decimal) (decimal.Decimal, error) {
	next := balance.Add(t.Signed())
	if next.IsNegative() {
		return balance, fmt.Errorf("%w: balance %s is less than %s", apperr.ErrInsufficientFunds, balance.StringFixed(2), t.Amount.StringFixed(2))
	}
	return next, nil
}

// Sum folds a history into the balance it implies.
func Sum(history []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range history {
		total = total.Add(t.Signed())
	}
	return total
}

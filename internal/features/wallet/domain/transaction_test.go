package domain

import (
	"testing"

	"commerce-backend/internal/core/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewTransaction(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		dir     Direction
		amount  string
		wantErr error
	}{
		{"Credit", "user-1", Credit, "10", nil},
		{"Debit", "user-1", Debit, "0.01", nil},
		{"MissingUser", "", Credit, "10", apperr.ErrValidation},
		{"Zero", "user-1", Credit, "0", apperr.ErrValidation},
		{"Negative", "user-1", Debit, "-5", apperr.ErrValidation},
		{"RoundsToZero", "user-1", Credit, "0.001", apperr.ErrValidation},
		{"UnknownDirection", "user-1", Direction("transfer"), "1", apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := NewTransaction(tt.userID, tt.dir, d(tt.amount), "reason", "order-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, txn.ID)
			assert.Equal(t, tt.dir, txn.Direction)
			assert.False(t, txn.CreatedAt.IsZero())
		})
	}
}

func TestTransaction_ApplyTo(t *testing.T) {
	credit, _ := NewTransaction("user-1", Credit, d("50"), "order cancelled", "")
	debit, _ := NewTransaction("user-1", Debit, d("100"), "order payment using wallet", "")

	next, err := credit.ApplyTo(d("0"))
	require.NoError(t, err)
	assert.True(t, next.Equal(d("50")))

	next, err = debit.ApplyTo(d("150"))
	require.NoError(t, err)
	assert.True(t, next.Equal(d("50")))

	next, err = debit.ApplyTo(d("100"))
	require.NoError(t, err)
	assert.True(t, next.IsZero())

	next, err = debit.ApplyTo(d("99.99"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.True(t, next.Equal(d("99.99")))
}

func TestSum(t *testing.T) {
	a, _ := NewTransaction("u", Credit, d("150"), "", "")
	b, _ := NewTransaction("u", Debit, d("100"), "", "")
	c, _ := NewTransaction("u", Credit, d("50"), "", "")

	assert.True(t, Sum([]Transaction{a, b, c}).Equal(d("100")))
	assert.True(t, Sum(nil).IsZero())
}

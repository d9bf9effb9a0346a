package domain

import (
	"testing"

	"commerce-backend/internal/core/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"25", 2500},
		{"49.99", 4999},
		{"0.125", 13},
		{"19.994", 1999},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestCallbackURLs(t *testing.T) {
	success, cancel := CallbackURLs("https://shop.example.com/", "order-1")

	assert.Equal(t, "https://shop.example.com/payment-success?orderId=order-1", success)
	assert.Equal(t, "https://shop.example.com/payment-failure?orderId=order-1", cancel)

	id, err := OrderIDFromURL(success)
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)
}

func TestOrderIDFromURL_Invalid(t *testing.T) {
	_, err := OrderIDFromURL("https://shop.example.com/payment-success")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = OrderIDFromURL("://bad")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestProductReturnReason(t *testing.T) {
	assert.Equal(t, "returned product refund: too small", ProductReturnReason("too small"))
}

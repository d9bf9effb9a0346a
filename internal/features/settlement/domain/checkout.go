package domain

import (
	"fmt"
	"net/url"
	"strings"

	"commerce-backend/internal/core/apperr"

	"github.com/shopspring/decimal"
)

// Ledger reasons recorded against wallet transactions.
const (
	ReasonCancelled     = "order cancelled"
	ReasonReturned      = "product returned refund"
	ReasonWalletPayment = "order payment using wallet"
	ReasonRefund        = "refund for order"
	ReasonReversal      = "payment reversal"
)

// ProductReturnReason is the ledger reason for a single returned line.
func ProductReturnReason(reason string) string {
	return "returned product refund: " + reason
}

// CheckoutLine is a gateway line item in integer minor units.
type CheckoutLine struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CheckoutRequest describes a hosted checkout for one order.
type CheckoutRequest struct {
	OrderID    string
	UserID     string
	Currency   string
	SuccessURL string
	CancelURL  string
	Lines      []CheckoutLine
}

// CheckoutSession is the gateway's answer to a CheckoutRequest.
type CheckoutSession struct {
	ID  string
	URL string
}

// Refund is the gateway's answer to a refund request.
type Refund struct {
	ID     string
	Status string
}

// EventCheckoutCompleted is the only gateway event that changes order state.
const EventCheckoutCompleted = "checkout.session.completed"

// GatewayEvent is a verified webhook event.
type GatewayEvent struct {
	ID         string
	Type       string
	OrderID    string
	PaymentRef string
}

// ToMinorUnits converts a currency amount to integer minor units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CallbackURLs builds the success and cancel URLs for an order's checkout.
func CallbackURLs(publicDomain, orderID string) (success, cancel string) {
	base := strings.TrimRight(publicDomain, "/")
	q := url.Values{"orderId": {orderID}}.Encode()
	return base + "/payment-success?" + q, base + "/payment-failure?" + q
}

// OrderIDFromURL extracts the orderId query parameter embedded by CallbackURLs.
func OrderIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed callback url", apperr.ErrValidation)
	}
	id := u.Query().Get("orderId")
	if id == "" {
		return "", fmt.Errorf("%w: callback url has no orderId", apperr.ErrValidation)
	}
	return id, nil
}

package domain

import (
	"fmt"
	"time"

	"commerce-backend/internal/core/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the current state of an order.
type Status string

const (
	// StatusProcessing is the initial state, before payment settles.
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
	StatusRefunded   Status = "refunded"
)

var validStatuses = map[Status]bool{
	StatusProcessing: true,
	StatusPaid:       true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
	StatusReturned:   true,
	StatusRefunded:   true,
}

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// Settled reports whether the whole remaining net amount has already been paid back.
func (s Status) Settled() bool {
	return s == StatusCancelled || s == StatusReturned || s == StatusRefunded
}

// LineStatus represents the state of a single line item.
type LineStatus string

const (
	LineOrdered   LineStatus = "ordered"
	LineCancelled LineStatus = "cancelled"
	LineReturned  LineStatus = "returned"
)

// PaymentMethod is how an order is settled.
type PaymentMethod string

const (
	PaymentWallet PaymentMethod = "wallet"
	PaymentStripe PaymentMethod = "stripe"
	PaymentCOD    PaymentMethod = "cod"
)

// ParsePaymentMethod validates a client-supplied payment method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentWallet, PaymentStripe, PaymentCOD:
		return m, nil
	case "":
		return "", fmt.Errorf("%w: paymentMethod is required", apperr.ErrValidation)
	default:
		return "", fmt.Errorf("%w: invalid payment method %q", apperr.ErrUnsupportedMethod, s)
	}
}

// PaymentStatus is a projection of Status for clients.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// LineItem is one product entry. Name, price and discount are snapshots taken
// at creation and never change afterwards.
type LineItem struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Discount     decimal.Decimal `json:"discount"`
	Quantity     int             `json:"quantity"`
	Status       LineStatus      `json:"status"`
	CancelReason string          `json:"cancelReason,omitempty"`
}

// UnitNet is the price actually charged per unit.
func (l LineItem) UnitNet() decimal.Decimal {
	return l.Price.Sub(l.Discount)
}

// Net is the amount charged for the whole line.
func (l LineItem) Net() decimal.Decimal {
	return l.UnitNet().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Gross is the undiscounted amount for the whole line.
func (l LineItem) Gross() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the order aggregate.
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	AddressID     string          `json:"addressId,omitempty"`
	Items         []LineItem      `json:"products"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	NetAmount     decimal.Decimal `json:"netAmount"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentMethod PaymentMethod   `json:"paymentMethod,omitempty"`
	PaymentRef    string          `json:"paymentRef,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
}

// NewOrder validates the line items and computes the order totals.
func NewOrder(userID, addressID string, items []LineItem) (*Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", apperr.ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one product", apperr.ErrValidation)
	}

	lines := make([]LineItem, len(items))
	total, net := decimal.Zero, decimal.Zero

	for i, item := range items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("%w: products[%d].productId is required", apperr.ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: products[%d].quantity must be greater than zero", apperr.ErrValidation, i)
		}
		price, discount := item.Price.Round(2), item.Discount.Round(2)
		if price.IsNegative() {
			return nil, fmt.Errorf("%w: products[%d].price must not be negative", apperr.ErrValidation, i)
		}
		if discount.IsNegative() || discount.GreaterThan(price) {
			return nil, fmt.Errorf("%w: products[%d].discount must be between 0 and price", apperr.ErrValidation, i)
		}

		lines[i] = LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     price,
			Discount:  discount,
			Quantity:  item.Quantity,
			Status:    LineOrdered,
		}
		total = total.Add(lines[i].Gross())
		net = net.Add(lines[i].Net())
	}

	now := time.Now().UTC()
	return &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		AddressID:     addressID,
		Items:         lines,
		TotalAmount:   total,
		NetAmount:     net,
		Status:        StatusProcessing,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// SetStatus is the administrative status override. Only the value is checked.
func (o *Order) SetStatus(s Status) error {
	if !s.Valid() {
		return fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, s)
	}
	o.transition(s)
	return nil
}

// Cancel moves a processing order to cancelled and returns the amount owed back.
func (o *Order) Cancel() (decimal.Decimal, error) {
	if o.Status != StatusProcessing {
		return decimal.Zero, fmt.Errorf("%w: cannot cancel this order", apperr.ErrInvalidState)
	}
	o.transition(StatusCancelled)
	return o.NetAmount, nil
}

// Return moves a delivered order to returned and returns the amount owed back.
func (o *Order) Return() (decimal.Decimal, error) {
	if o.Status != StatusDelivered {
		return decimal.Zero, fmt.Errorf("%w: cannot return this order", apperr.ErrInvalidState)
	}
	o.transition(StatusReturned)
	return o.NetAmount, nil
}

// ReturnProduct returns the first ordered line for productID and reduces the
// net amount by that line's value, which is returned as the refund.
// Order status is checked as well: cancelled, returned and refunded orders are
// refused because those paths already credited the whole remaining net amount.
func (o *Order) ReturnProduct(productID, reason string) (decimal.Decimal, error) {
	if o.Status.Settled() {
		return decimal.Zero, fmt.Errorf("%w: order is already %s", apperr.ErrInvalidState, o.Status)
	}
	if reason == "" {
		reason = "No reason provided"
	}

	for i := range o.Items {
		line := &o.Items[i]
		if line.ProductID != productID || line.Status != LineOrdered {
			continue
		}

		refund := line.Net()
		remaining := o.NetAmount.Sub(refund)
		if remaining.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: refund %s exceeds net amount %s", apperr.ErrInvalidState, refund.StringFixed(2), o.NetAmount.StringFixed(2))
		}

		line.Status = LineReturned
		line.CancelReason = reason
		o.NetAmount = remaining
		o.touch()
		return refund, nil
	}

	return decimal.Zero, fmt.Errorf("%w: product not found in order or already returned", apperr.ErrNotFound)
}

// CanInitiatePayment reports whether a payment may still be started.
func (o *Order) CanInitiatePayment() error {
	if o.Status != StatusProcessing || o.PaymentMethod != "" {
		return fmt.Errorf("%w: payment cannot be initiated for this order", apperr.ErrInvalidState)
	}
	return nil
}

// SetCashOnDelivery records deferred settlement. The order stays processing.
func (o *Order) SetCashOnDelivery() error {
	if err := o.CanInitiatePayment(); err != nil {
		return err
	}
	o.PaymentMethod = PaymentCOD
	o.touch()
	return nil
}

// MarkPaid settles a processing order with method and an optional gateway reference.
func (o *Order) MarkPaid(method PaymentMethod, ref string) error {
	if o.Status != StatusProcessing {
		return fmt.Errorf("%w: order is %s, not processing", apperr.ErrInvalidState, o.Status)
	}
	o.PaymentMethod = method
	if ref != "" {
		o.PaymentRef = ref
	}
	o.transition(StatusPaid)
	return nil
}

// IsPaidWith reports whether the order is already paid through the gateway with ref.
func (o *Order) IsPaidWith(method PaymentMethod, ref string) bool {
	return o.Status == StatusPaid && o.PaymentMethod == method && o.PaymentRef == ref
}

// Refund moves a paid order to refunded and returns the amount owed back.
func (o *Order) Refund() (decimal.Decimal, error) {
	if o.Status != StatusPaid {
		return decimal.Zero, fmt.Errorf("%w: only paid orders can be refunded", apperr.ErrInvalidState)
	}
	o.transition(StatusRefunded)
	return o.NetAmount, nil
}

// PayableLines returns the lines still owed, for building a checkout.
func (o *Order) PayableLines() []LineItem {
	var lines []LineItem
	for _, l := range o.Items {
		if l.Status == LineOrdered && l.UnitNet().IsPositive() {
			lines = append(lines, l)
		}
	}
	return lines
}

func (o *Order) transition(s Status) {
	now := time.Now().UTC()
	o.Status = s
	switch s {
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	// Shipping does not settle anything; delivery collects cash on delivery.
	switch s {
	case StatusPaid, StatusDelivered:
		o.PaymentStatus = PaymentPaid
	case StatusRefunded:
		o.PaymentStatus = PaymentRefunded
	case StatusCancelled, StatusReturned:
		if o.PaymentStatus == PaymentPaid {
			o.PaymentStatus = PaymentRefunded
		}
	}
	o.UpdatedAt = now
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

package ports

import (
	"context"

	orderdomain "commerce-backend/internal/features/orders/domain"
	"commerce-backend/internal/features/settlement/domain"

	"github.com/shopspring/decimal"
)

// OrderLookup loads orders for ownership checks.
type OrderLookup interface {
	Get(ctx context.Context, id string) (*orderdomain.Order, error)
}

// OrderStore is the slice of the order repository settlement needs.
type OrderStore interface {
	OrderLookup
	Update(ctx context.Context, id string, fn func(order *orderdomain.Order) error) (*orderdomain.Order, error)
}

// Ledger moves money in and out of wallets.
type Ledger interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reason, orderID string) (decimal.Decimal, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, reason, orderID string) (decimal.Decimal, error)
}

// PaymentGateway is the external card-payment provider. This is a Secondary Port.
type PaymentGateway interface {
	// CreateCheckoutSession opens a hosted checkout and returns its URL.
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	// Refund refunds the payment identified by paymentRef in full.
	Refund(ctx context.Context, paymentRef string) (*domain.Refund, error)
	// ParseEvent verifies the signature over the raw payload and decodes the event.
	ParseEvent(payload []byte, signature string) (*domain.GatewayEvent, error)
}

// EventDeduplicator remembers which webhook events were already processed.
type EventDeduplicator interface {
	// FirstDelivery records eventID and reports whether it had not been seen before.
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
	// Forget drops eventID so a redelivery is processed again.
	Forget(ctx context.Context, eventID string) error
}

// PaymentResult is the outcome of a payment initiation.
type PaymentResult struct {
	Order       *orderdomain.Order
	CheckoutURL string
	Message     string
}

// WebhookResult is the outcome of a webhook delivery.
type WebhookResult struct {
	Duplicate bool
	Applied   bool
}

// SettlementService is the settlement API used by the HTTP layer. This is a Primary Port.
type SettlementService interface {
	CancelOrder(ctx context.Context, orderID string) (*orderdomain.Order, error)
	ReturnOrder(ctx context.Context, orderID string) (*orderdomain.Order, error)
	ReturnProduct(ctx context.Context, orderID, productID, reason string) (*orderdomain.Order, error)
	InitiatePayment(ctx context.Context, orderID, method string) (*PaymentResult, error)
	RefundPayment(ctx context.Context, orderID string) (*orderdomain.Order, error)
}

// WebhookReconciler applies gateway events to orders. This is a Primary Port.
type WebhookReconciler interface {
	Handle(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
}

package service

import (
	"context"
	"fmt"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/events"
	"commerce-backend/internal/core/logger"
	orderdomain "commerce-backend/internal/features/orders/domain"
	"commerce-backend/internal/features/settlement/domain"
	"commerce-backend/internal/features/settlement/ports"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutConfig holds the settings used to build gateway checkouts.
type CheckoutConfig struct {
	Currency     string
	PublicDomain string
}

// SettlementService keeps orders and wallets consistent across payments,
// cancellations, returns and refunds.
//
// Every sequence runs inside OrderStore.Update, so the order is locked while
// money moves and the order change is discarded if the ledger or gateway call
// fails. If persisting the order fails after money moved, the ledger effect is
// reversed. Sequences ignore caller cancellation once started.
type SettlementService struct {
	orders    ports.OrderStore
	ledger    ports.Ledger
	gateway   ports.PaymentGateway
	publisher events.Publisher
	checkout  CheckoutConfig
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(orders ports.OrderStore, ledger ports.Ledger, gateway ports.PaymentGateway, publisher events.Publisher, checkout CheckoutConfig) *SettlementService {
	return &SettlementService{
		orders:    orders,
		ledger:    ledger,
		gateway:   gateway,
		publisher: publisher,
		checkout:  checkout,
	}
}

// ledgerEffect records money moved inside an Update callback.
type ledgerEffect struct {
	userID string
	amount decimal.Decimal
	credit bool
}

// CancelOrder cancels a processing order and credits its net amount to the owner.
func (s *SettlementService) CancelOrder(ctx context.Context, orderID string) (*orderdomain.Order, error) {
	return s.reverse(ctx, orderID, events.OrderCancelled, domain.ReasonCancelled, (*orderdomain.Order).Cancel)
}

// ReturnOrder returns a delivered order and credits its net amount to the owner.
func (s *SettlementService) ReturnOrder(ctx context.Context, orderID string) (*orderdomain.Order, error) {
	return s.reverse(ctx, orderID, events.OrderReturned, domain.ReasonReturned, (*orderdomain.Order).Return)
}

// ReturnProduct returns one ordered line and credits its value to the owner.
func (s *SettlementService) ReturnProduct(ctx context.Context, orderID, productID, reason string) (*orderdomain.Order, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", apperr.ErrValidation)
	}
	if reason == "" {
		reason = "No reason provided"
	}

	return s.reverse(ctx, orderID, events.OrderProductReturned, domain.ProductReturnReason(reason),
		func(o *orderdomain.Order) (decimal.Decimal, error) {
			return o.ReturnProduct(productID, reason)
		})
}

// reverse applies a guarded transition that owes money back and credits it.
func (s *SettlementService) reverse(ctx context.Context, orderID string, eventType events.Type, reason string, transition func(*orderdomain.Order) (decimal.Decimal, error)) (*orderdomain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", apperr.ErrValidation)
	}
	ctx = context.WithoutCancel(ctx)

	var effect *ledgerEffect
	order, err := s.orders.Update(ctx, orderID, func(o *orderdomain.Order) error {
		amount, err := transition(o)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return nil
		}
		if _, err := s.ledger.Credit(ctx, o.UserID, amount, reason, o.ID); err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}
		effect = &ledgerEffect{userID: o.UserID, amount: amount, credit: true}
		return nil
	})
	if err != nil {
		s.compensate(ctx, orderID, effect, err)
		return nil, err
	}

	attrs := map[string]string{"netAmount": order.NetAmount.StringFixed(2)}
	if effect != nil {
		attrs["credited"] = effect.amount.StringFixed(2)
	}
	logger.FromContext(ctx).Named("settlement").Info("Order settled back to wallet",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("event", string(eventType)),
		zap.String("reason", reason),
	)
	events.Notify(ctx, s.publisher, events.NewEvent(eventType, order.ID, order.UserID, attrs))
	return order, nil
}

// InitiatePayment settles an order by wallet, opens a gateway checkout, or
// records cash on delivery.
func (s *SettlementService) InitiatePayment(ctx context.Context, orderID, method string) (*ports.PaymentResult, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", apperr.ErrValidation)
	}
	pm, err := orderdomain.ParsePaymentMethod(method)
	if err != nil {
		return nil, err
	}

	switch pm {
	case orderdomain.PaymentWallet:
		return s.payWithWallet(ctx, orderID)
	case orderdomain.PaymentStripe:
		return s.openCheckout(ctx, orderID)
	default:
		return s.cashOnDelivery(ctx, orderID)
	}
}

func (s *SettlementService) payWithWallet(ctx context.Context, orderID string) (*ports.PaymentResult, error) {
	ctx = context.WithoutCancel(ctx)

	var effect *ledgerEffect
	order, err := s.orders.Update(ctx, orderID, func(o *orderdomain.Order) error {
		if err := o.CanInitiatePayment(); err != nil {
			return err
		}
		if o.NetAmount.IsPositive() {
			if _, err := s.ledger.Debit(ctx, o.UserID, o.NetAmount, domain.ReasonWalletPayment, o.ID); err != nil {
				return err
			}
			effect = &ledgerEffect{userID: o.UserID, amount: o.NetAmount}
		}
		return o.MarkPaid(orderdomain.PaymentWallet, "")
	})
	if err != nil {
		s.compensate(ctx, orderID, effect, err)
		return nil, err
	}

	logger.FromContext(ctx).Named("settlement").Info("Order paid with wallet",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("amount", order.NetAmount.StringFixed(2)),
	)
	s.notifyPaid(ctx, order)
	return &ports.PaymentResult{Order: order, Message: "Payment successful using wallet"}, nil
}

func (s *SettlementService) openCheckout(ctx context.Context, orderID string) (*ports.PaymentResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.CanInitiatePayment(); err != nil {
		return nil, err
	}

	lines := order.PayableLines()
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has nothing left to pay", apperr.ErrInvalidState)
	}

	success, cancel := domain.CallbackURLs(s.checkout.PublicDomain, order.ID)
	req := domain.CheckoutRequest{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Currency:   s.checkout.Currency,
		SuccessURL: success,
		CancelURL:  cancel,
	}
	for _, l := range lines {
		name := l.Name
		if name == "" {
			name = l.ProductID
		}
		req.Lines = append(req.Lines, domain.CheckoutLine{
			Name:       name,
			UnitAmount: domain.ToMinorUnits(l.UnitNet()),
			Quantity:   int64(l.Quantity),
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		logger.FromContext(ctx).Named("settlement").Error("Failed to create checkout session",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return nil, asExternal(err, "failed to create checkout session")
	}

	logger.FromContext(ctx).Named("settlement").Info("Checkout session created",
		zap.String("order_id", order.ID),
		zap.String("session_id", session.ID),
	)
	return &ports.PaymentResult{Order: order, CheckoutURL: session.URL}, nil
}

func (s *SettlementService) cashOnDelivery(ctx context.Context, orderID string) (*ports.PaymentResult, error) {
	order, err := s.orders.Update(context.WithoutCancel(ctx), orderID, func(o *orderdomain.Order) error {
		return o.SetCashOnDelivery()
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.publisher, events.NewEvent(events.OrderStatusChanged, order.ID, order.UserID, map[string]string{
		"paymentMethod": string(orderdomain.PaymentCOD),
	}))
	return &ports.PaymentResult{Order: order, Message: "Order placed with cash on delivery"}, nil
}

// RefundPayment refunds a paid order through the method it was paid with.
func (s *SettlementService) RefundPayment(ctx context.Context, orderID string) (*orderdomain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", apperr.ErrValidation)
	}
	ctx = context.WithoutCancel(ctx)

	var effect *ledgerEffect
	order, err := s.orders.Update(ctx, orderID, func(o *orderdomain.Order) error {
		if o.Status != orderdomain.StatusPaid {
			return fmt.Errorf("%w: only paid orders can be refunded", apperr.ErrInvalidState)
		}

		switch o.PaymentMethod {
		case orderdomain.PaymentWallet:
			amount, err := o.Refund()
			if err != nil {
				return err
			}
			if amount.IsPositive() {
				if _, err := s.ledger.Credit(ctx, o.UserID, amount, domain.ReasonRefund, o.ID); err != nil {
					return fmt.Errorf("failed to credit wallet: %w", err)
				}
				effect = &ledgerEffect{userID: o.UserID, amount: amount, credit: true}
			}
			return nil

		case orderdomain.PaymentStripe:
			if o.PaymentRef == "" {
				return fmt.Errorf("%w: no payment reference stored for this order", apperr.ErrValidation)
			}
			if _, err := o.Refund(); err != nil {
				return err
			}
			refund, err := s.gateway.Refund(ctx, o.PaymentRef)
			if err != nil {
				return asExternal(err, "gateway refund failed")
			}
			logger.FromContext(ctx).Named("settlement").Info("Gateway refund issued",
				zap.String("order_id", o.ID),
				zap.String("refund_id", refund.ID),
				zap.String("refund_status", refund.Status),
			)
			return nil

		default:
			return fmt.Errorf("%w: refund method not supported for this order", apperr.ErrUnsupportedMethod)
		}
	})
	if err != nil {
		s.compensate(ctx, orderID, effect, err)
		return nil, err
	}

	events.Notify(ctx, s.publisher, events.NewEvent(events.OrderRefunded, order.ID, order.UserID, map[string]string{
		"paymentMethod": string(order.PaymentMethod),
		"amount":        order.NetAmount.StringFixed(2),
	}))
	return order, nil
}

func (s *SettlementService) notifyPaid(ctx context.Context, order *orderdomain.Order) {
	events.Notify(ctx, s.publisher, events.NewEvent(events.OrderPaid, order.ID, order.UserID, map[string]string{
		"paymentMethod": string(order.PaymentMethod),
		"amount":        order.NetAmount.StringFixed(2),
	}))
}

// compensate reverses a ledger effect whose order change was not persisted.
func (s *SettlementService) compensate(ctx context.Context, orderID string, effect *ledgerEffect, cause error) {
	if effect == nil {
		return
	}

	log := logger.FromContext(ctx).Named("settlement").With(
		zap.String("order_id", orderID),
		zap.String("user_id", effect.userID),
		zap.String("amount", effect.amount.StringFixed(2)),
		zap.NamedError("cause", cause),
	)

	var err error
	if effect.credit {
		_, err = s.ledger.Debit(ctx, effect.userID, effect.amount, domain.ReasonReversal, orderID)
	} else {
		_, err = s.ledger.Credit(ctx, effect.userID, effect.amount, domain.ReasonReversal, orderID)
	}
	if err != nil {
		log.Error("Ledger compensation failed, manual reconciliation required", zap.Error(err))
		return
	}
	log.Warn("Ledger effect compensated after order update failed")
}

// asExternal wraps collaborator failures that are not already classified.
func asExternal(err error, msg string) error {
	if apperr.IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrExternalService, msg, err)
}

var _ ports.SettlementService = (*SettlementService)(nil)

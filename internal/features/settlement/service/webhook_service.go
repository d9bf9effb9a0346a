package service

import (
	"context"
	"errors"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/events"
	"commerce-backend/internal/core/logger"
	orderdomain "commerce-backend/internal/features/orders/domain"
	"commerce-backend/internal/features/settlement/domain"
	"commerce-backend/internal/features/settlement/ports"

	"go.uber.org/zap"
)

// errSkip aborts an Update without writing when the event must not be applied.
var errSkip = errors.New("skip")

// WebhookService applies verified gateway events to orders. Deliveries are
// at-least-once, so applying the same event again leaves the order unchanged.
type WebhookService struct {
	orders    ports.OrderStore
	gateway   ports.PaymentGateway
	dedup     ports.EventDeduplicator
	publisher events.Publisher
}

// NewWebhookService creates a new WebhookService. dedup may be nil.
func NewWebhookService(orders ports.OrderStore, gateway ports.PaymentGateway, dedup ports.EventDeduplicator, publisher events.Publisher) *WebhookService {
	return &WebhookService{
		orders:    orders,
		gateway:   gateway,
		dedup:     dedup,
		publisher: publisher,
	}
}

// Handle verifies payload against signature and applies the event it carries.
func (w *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (*ports.WebhookResult, error) {
	event, err := w.gateway.ParseEvent(payload, signature)
	if err != nil {
		logger.FromContext(ctx).Named("webhook").Warn("Rejected webhook", zap.Error(err))
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	log := logger.FromContext(ctx).Named("webhook").With(
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
	)

	if w.dedup != nil {
		first, err := w.dedup.FirstDelivery(ctx, event.ID)
		switch {
		case err != nil:
			log.Warn("Event de-duplication unavailable", zap.Error(err))
		case !first:
			log.Info("Duplicate webhook delivery ignored")
			return &ports.WebhookResult{Duplicate: true}, nil
		}
	}

	if event.Type != domain.EventCheckoutCompleted {
		log.Debug("Webhook event ignored")
		return &ports.WebhookResult{}, nil
	}

	applied, err := w.applyCheckoutCompleted(ctx, event, log)
	if err != nil {
		if w.dedup != nil {
			if ferr := w.dedup.Forget(ctx, event.ID); ferr != nil {
				log.Warn("Failed to release event for redelivery", zap.Error(ferr))
			}
		}
		return nil, err
	}
	return &ports.WebhookResult{Applied: applied}, nil
}

func (w *WebhookService) applyCheckoutCompleted(ctx context.Context, event *domain.GatewayEvent, log *zap.Logger) (bool, error) {
	log = log.With(zap.String("order_id", event.OrderID), zap.String("payment_ref", event.PaymentRef))

	order, err := w.orders.Update(ctx, event.OrderID, func(o *orderdomain.Order) error {
		if o.IsPaidWith(orderdomain.PaymentStripe, event.PaymentRef) {
			log.Info("Payment already recorded")
			return errSkip
		}
		if o.Status != orderdomain.StatusProcessing {
			log.Warn("Payment confirmation for order that is no longer processing ignored",
				zap.String("status", string(o.Status)),
			)
			return errSkip
		}
		return o.MarkPaid(orderdomain.PaymentStripe, event.PaymentRef)
	})
	switch {
	case errors.Is(err, errSkip):
		return false, nil
	case errors.Is(err, apperr.ErrNotFound):
		log.Warn("Payment confirmation for unknown order ignored")
		return false, nil
	case err != nil:
		log.Error("Failed to apply payment confirmation", zap.Error(err))
		return false, err
	}

	log.Info("Order paid through gateway")
	events.Notify(ctx, w.publisher, events.NewEvent(events.OrderPaid, order.ID, order.UserID, map[string]string{
		"paymentMethod": string(order.PaymentMethod),
		"paymentRef":    order.PaymentRef,
		"amount":        order.NetAmount.StringFixed(2),
	}))
	return true, nil
}

var _ ports.WebhookReconciler = (*WebhookService)(nil)

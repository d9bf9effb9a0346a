package events

import (
	"context"
	"time"

	"commerce-backend/internal/core/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type names an order lifecycle event. It doubles as the routing key.
type Type string

const (
	OrderCreated         Type = "order.created"
	OrderCancelled       Type = "order.cancelled"
	OrderReturned        Type = "order.returned"
	OrderProductReturned Type = "order.product_returned"
	OrderStatusChanged   Type = "order.status_changed"
	OrderPaid            Type = "order.paid"
	OrderRefunded        Type = "order.refunded"
)

// Event is the message handed to the notification collaborator.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	OrderID    string            `json:"orderId"`
	UserID     string            `json:"userId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(t Type, orderID, userID string, attrs map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OrderID:    orderID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Attributes: attrs,
	}
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, event Event) error {
	logger.Named("events").Info("Order event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
		zap.Any("attributes", event.Attributes),
	)
	return nil
}

// Notify publishes event and logs a failure instead of returning it.
func Notify(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Named("events").Warn("Failed to publish order event",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/events"
	"commerce-backend/internal/core/logger"
	"commerce-backend/internal/features/orders/domain"
	"commerce-backend/internal/features/orders/ports"

	"go.uber.org/zap"
)

// OrderService handles order creation, reads and administrative status changes.
type OrderService struct {
	repo      ports.OrderRepository
	catalog   ports.CatalogProvider
	publisher events.Publisher
}

// NewOrderService creates a new instance of OrderService. catalog may be nil,
// in which case client-supplied snapshots are trusted.
func NewOrderService(repo ports.OrderRepository, catalog ports.CatalogProvider, publisher events.Publisher) *OrderService {
	return &OrderService{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
	}
}

// Create snapshots the line items, computes totals and stores a processing order.
func (s *OrderService) Create(ctx context.Context, in ports.CreateOrderInput) (*domain.Order, error) {
	items := in.Items
	if s.catalog != nil {
		var err error
		if items, err = s.snapshot(ctx, in.Items); err != nil {
			return nil, err
		}
	}

	order, err := domain.NewOrder(in.UserID, in.AddressID, items)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(context.WithoutCancel(ctx), order); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	logger.FromContext(ctx).Named("orders").Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("net_amount", order.NetAmount.StringFixed(2)),
	)
	events.Notify(ctx, s.publisher, events.NewEvent(events.OrderCreated, order.ID, order.UserID, map[string]string{
		"totalAmount": order.TotalAmount.StringFixed(2),
		"netAmount":   order.NetAmount.StringFixed(2),
	}))
	return order, nil
}

// snapshot replaces name, price and discount with the catalog's current values.
func (s *OrderService) snapshot(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		out[i] = item
		if item.ProductID == "" {
			continue
		}

		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if apperr.IsKnown(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: catalog lookup failed: %v", apperr.ErrExternalService, err)
		}

		out[i].Name = product.Name
		out[i].Price = product.Price
		out[i].Discount = product.Discount
	}
	return out, nil
}

// Get returns a single order.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: orderId is required", apperr.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// ListByUser returns a user's orders, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", apperr.ErrValidation)
	}
	return s.repo.ListByUser(ctx, userID)
}

// ListAll returns every order for administrators.
func (s *OrderService) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return s.repo.ListAll(ctx)
}

// UpdateStatus sets the order status without business-rule checks.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, status)
	}

	var previous domain.Status
	order, err := s.repo.Update(context.WithoutCancel(ctx), id, func(o *domain.Order) error {
		previous = o.Status
		return o.SetStatus(status)
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			logger.FromContext(ctx).Named("orders").Error("Failed to update order status",
				zap.String("order_id", id),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	events.Notify(ctx, s.publisher, events.NewEvent(events.OrderStatusChanged, order.ID, order.UserID, map[string]string{
		"from": string(previous),
		"to":   string(order.Status),
	}))
	return order, nil
}

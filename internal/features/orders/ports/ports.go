package ports

import (
	"context"

	"commerce-backend/internal/features/orders/domain"
)

// OrderRepository persists orders. This is a Secondary Port (Driven Port).
type OrderRepository interface {
	// Create stores a new order.
	Create(ctx context.Context, order *domain.Order) error
	// Get returns the order or an apperr.ErrNotFound error.
	Get(ctx context.Context, id string) (*domain.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]*domain.Order, error)
	// Update loads the order under a per-order lock, applies fn and persists
	// the result. If fn returns an error nothing is written.
	Update(ctx context.Context, id string, fn func(order *domain.Order) error) (*domain.Order, error)
}

// CatalogProvider looks up product snapshots. This is a Secondary Port (Driven Port).
type CatalogProvider interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// CreateOrderInput is the data needed to place an order.
type CreateOrderInput struct {
	UserID    string
	AddressID string
	Items     []domain.LineItem
}

// OrderService is the order API used by the HTTP layer. This is a Primary Port.
type OrderService interface {
	Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error)
}

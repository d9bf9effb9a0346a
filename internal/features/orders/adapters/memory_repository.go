package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/features/orders/domain"
)

// MemoryRepository is an in-process OrderRepository. Each order has its own
// lock so Update calls on one order serialize without blocking others.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	locks  map[string]*sync.Mutex
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: map[string]*domain.Order{},
		locks:  map[string]*sync.Mutex{},
	}
}

// Create implements ports.OrderRepository.
func (r *MemoryRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = order.Clone()
	r.locks[order.ID] = &sync.Mutex{}
	return nil
}

// Get implements ports.OrderRepository.
func (r *MemoryRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, notFound(id)
	}
	return order.Clone(), nil
}

// ListByUser implements ports.OrderRepository.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

// ListAll implements ports.OrderRepository.
func (r *MemoryRepository) ListAll(_ context.Context) ([]*domain.Order, error) {
	return r.list(func(*domain.Order) bool { return true }), nil
}

func (r *MemoryRepository) list(keep func(*domain.Order) bool) []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Update implements ports.OrderRepository.
func (r *MemoryRepository) Update(_ context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	working := r.orders[id].Clone()
	r.mu.RUnlock()

	if err := fn(working); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.orders[id] = working.Clone()
	r.mu.Unlock()

	return working, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
}

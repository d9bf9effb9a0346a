package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce-backend/internal/core/postgres"
	"commerce-backend/internal/features/orders/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id::text, user_id, address_id, status, payment_status, payment_method, payment_ref,
	total_cents, net_cents, created_at, updated_at, delivered_at, cancelled_at`

const itemColumns = `order_id::text, product_id, name, price_cents, discount_cents, quantity, status, cancel_reason`

// itemsByOrderQuery leaves order_id uncast so the order_items primary key applies.
const itemsByOrderQuery = `SELECT ` + itemColumns + ` FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores orders and their line items in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create implements ports.OrderRepository.
func (r *PostgresRepository) Create(ctx context.Context, order *domain.Order) error {
	return postgres.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO orders (id, user_id, address_id, status, payment_status, payment_method, payment_ref,
				total_cents, net_cents, created_at, updated_at, delivered_at, cancelled_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			order.ID, order.UserID, order.AddressID, string(order.Status), string(order.PaymentStatus),
			string(order.PaymentMethod), order.PaymentRef,
			postgres.ToCents(order.TotalAmount), postgres.ToCents(order.NetAmount),
			order.CreatedAt, order.UpdatedAt, order.DeliveredAt, order.CancelledAt,
		); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, position, product_id, name, price_cents, discount_cents, quantity, status, cancel_reason)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				order.ID, i, item.ProductID, item.Name,
				postgres.ToCents(item.Price), postgres.ToCents(item.Discount),
				item.Quantity, string(item.Status), item.CancelReason,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert order items: %w", err)
		}
		return nil
	})
}

// Get implements ports.OrderRepository.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}
	return r.load(ctx, r.pool, id, false)
}

// ListByUser implements ports.OrderRepository.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAll implements ports.OrderRepository.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// Update implements ports.OrderRepository. The order row stays locked with
// SELECT ... FOR UPDATE until fn's result is committed.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}

	var updated *domain.Order
	err := postgres.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		order, err := r.load(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if err := fn(order); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, payment_status = $3, payment_method = $4, payment_ref = $5,
				net_cents = $6, updated_at = $7, delivered_at = $8, cancelled_at = $9
			 WHERE id = $1`,
			order.ID, string(order.Status), string(order.PaymentStatus), string(order.PaymentMethod), order.PaymentRef,
			postgres.ToCents(order.NetAmount), order.UpdatedAt, order.DeliveredAt, order.CancelledAt,
		); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(
				`UPDATE order_items SET status = $3, cancel_reason = $4 WHERE order_id = $1 AND position = $2`,
				order.ID, i, string(item.Status), item.CancelReason,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to update order items: %w", err)
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresRepository) load(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	items, err := loadItems(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return order, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	var ids []string
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                         domain.Order
		status, payStatus, method string
		totalCents, netCents      int64
		deliveredAt, cancelledAt  *time.Time
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.AddressID, &status, &payStatus, &method, &o.PaymentRef,
		&totalCents, &netCents, &o.CreatedAt, &o.UpdatedAt, &deliveredAt, &cancelledAt); err != nil {
		return nil, err
	}

	o.Status = domain.Status(status)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.PaymentMethod = domain.PaymentMethod(method)
	o.TotalAmount = postgres.FromCents(totalCents)
	o.NetAmount = postgres.FromCents(netCents)
	o.DeliveredAt = deliveredAt
	o.CancelledAt = cancelledAt
	return &o, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]domain.LineItem, error) {
	rows, err := q.Query(ctx, itemsByOrderQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := map[string][]domain.LineItem{}
	for rows.Next() {
		var (
			orderID, status string
			item            domain.LineItem
			price, discount int64
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &price, &discount, &item.Quantity, &status, &item.CancelReason); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Price = postgres.FromCents(price)
		item.Discount = postgres.FromCents(discount)
		item.Status = domain.LineStatus(status)
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}

package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OrderRepositoryPostgres хранит заголовки заказов в PostgreSQL.
// Позиции заказов лежат в отдельной таблице и управляются своим репозиторием.
type OrderRepositoryPostgres struct {
	db *sql.DB
}

// NewOrderRepository создаёт репозиторий заказов поверх Store.
func NewOrderRepository(store *Store) *OrderRepositoryPostgres {
	return &OrderRepositoryPostgres{db: store.DB()}
}

var _ domain.OrderRepository = (*OrderRepositoryPostgres)(nil)

const orderColumns = `id, customer_id, status, payment_status, amount_minor,
	shipping_address, payment_method, order_date, version, created_at, updated_at`

// Create сохраняет новый заголовок заказа. Возвращает ErrOrderExists, если ID занят.
func (r *OrderRepositoryPostgres) Create(order domain.Order) error {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		order.ID, order.CustomerID, string(order.Status), string(order.PaymentStatus),
		order.AmountMinor, order.ShippingAddress, order.PaymentMethod,
		order.OrderDate, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	if affected == 0 {
		return domain.ErrOrderExists
	}
	return nil
}

// Get возвращает заголовок заказа по идентификатору.
func (r *OrderRepositoryPostgres) Get(id string) (domain.Order, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order %s: %w", id, err)
	}
	return order, nil
}

// Update применяет обновления к заказу с оптимистической блокировкой по версии.
// Возвращает ErrOrderVersionConflict, если версия в базе ушла вперёд.
func (r *OrderRepositoryPostgres) Update(order domain.Order) error {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, amount_minor = $4,
		    shipping_address = $5, payment_method = $6,
		    version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $8`,
		order.ID, string(order.Status), string(order.PaymentStatus), order.AmountMinor,
		order.ShippingAddress, order.PaymentMethod, order.UpdatedAt, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)", order.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check order %s existence: %w", order.ID, err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderVersionConflict
}

// ListByCustomer возвращает заказы покупателя, новые первыми.
func (r *OrderRepositoryPostgres) ListByCustomer(customerID int64, limit int) ([]domain.Order, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders for customer %d: %w", customerID, err)
	}
	return collectOrders(rows)
}

// ListByStatus возвращает заказы в заданном статусе, старые первыми.
func (r *OrderRepositoryPostgres) ListByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1
		ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list orders with status %s: %w", status, err)
	}
	return collectOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var status, paymentStatus string
	err := row.Scan(
		&o.ID, &o.CustomerID, &status, &paymentStatus, &o.AmountMinor,
		&o.ShippingAddress, &o.PaymentMethod, &o.OrderDate,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return o, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

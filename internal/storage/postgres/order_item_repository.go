package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OrderItemRepositoryPostgres хранит позиции заказов в PostgreSQL.
type OrderItemRepositoryPostgres struct {
	db *sql.DB
}

// NewOrderItemRepository создаёт репозиторий позиций заказов поверх Store.
func NewOrderItemRepository(store *Store) *OrderItemRepositoryPostgres {
	return &OrderItemRepositoryPostgres{db: store.DB()}
}

var _ domain.OrderItemRepository = (*OrderItemRepositoryPostgres)(nil)

// Save сохраняет одну позицию заказа.
func (r *OrderItemRepositoryPostgres) Save(item domain.OrderItem) error {
	ctx, cancel := queryCtx()
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, sku, qty, price_minor, subtotal_minor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.OrderID, item.SKU, item.Qty,
		item.PriceMinor, item.SubtotalMinor, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order item %s: %w", item.ID, err)
	}
	return nil
}

// Get возвращает позицию заказа по идентификатору.
func (r *OrderItemRepositoryPostgres) Get(id string) (domain.OrderItem, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	var item domain.OrderItem
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, sku, qty, price_minor, subtotal_minor, created_at
		FROM order_items WHERE id = $1`, id,
	).Scan(&item.ID, &item.OrderID, &item.SKU, &item.Qty,
		&item.PriceMinor, &item.SubtotalMinor, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OrderItem{}, domain.ErrOrderItemNotFound
	}
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("select order item %s: %w", id, err)
	}
	return item, nil
}

// Delete удаляет позицию заказа; возвращает false, если позиции не было.
func (r *OrderItemRepositoryPostgres) Delete(id string) bool {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx, "DELETE FROM order_items WHERE id = $1", id)
	if err != nil {
		return false
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false
	}
	return affected > 0
}

// ListByOrder возвращает позиции заказа в порядке создания.
func (r *OrderItemRepositoryPostgres) ListByOrder(orderID string) ([]domain.OrderItem, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, sku, qty, price_minor, subtotal_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items for order %s: %w", orderID, err)
	}
	defer func() { _ = rows.Close() }()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.SKU, &item.Qty,
			&item.PriceMinor, &item.SubtotalMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// CartRepositoryPostgres хранит корзины покупателей в PostgreSQL.
type CartRepositoryPostgres struct {
	db *sql.DB
}

// NewCartRepository создаёт репозиторий корзин поверх Store.
func NewCartRepository(store *Store) *CartRepositoryPostgres {
	return &CartRepositoryPostgres{db: store.DB()}
}

var _ domain.CartRepository = (*CartRepositoryPostgres)(nil)

// Upsert добавляет позицию в корзину или заменяет количество существующей.
// Время добавления сохраняется от первой версии позиции.
func (r *CartRepositoryPostgres) Upsert(item domain.CartItem) error {
	ctx, cancel := queryCtx()
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (customer_id, sku, qty, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (customer_id, sku)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = EXCLUDED.updated_at`,
		item.CustomerID, item.SKU, item.Qty, item.AddedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item %d/%s: %w", item.CustomerID, item.SKU, err)
	}
	return nil
}

// Get возвращает позицию корзины покупателя по SKU.
func (r *CartRepositoryPostgres) Get(customerID int64, sku string) (domain.CartItem, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	var item domain.CartItem
	err := r.db.QueryRowContext(ctx, `
		SELECT customer_id, sku, qty, added_at, updated_at
		FROM cart_items WHERE customer_id = $1 AND sku = $2`,
		customerID, sku,
	).Scan(&item.CustomerID, &item.SKU, &item.Qty, &item.AddedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("select cart item %d/%s: %w", customerID, sku, err)
	}
	return item, nil
}

// ListByCustomer возвращает корзину покупателя в порядке добавления.
func (r *CartRepositoryPostgres) ListByCustomer(customerID int64) ([]domain.CartItem, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT customer_id, sku, qty, added_at, updated_at
		FROM cart_items
		WHERE customer_id = $1
		ORDER BY added_at, sku`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list cart for customer %d: %w", customerID, err)
	}
	defer func() { _ = rows.Close() }()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.CustomerID, &item.SKU, &item.Qty, &item.AddedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

// Remove удаляет позицию из корзины; возвращает false, если позиции не было.
func (r *CartRepositoryPostgres) Remove(customerID int64, sku string) bool {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE customer_id = $1 AND sku = $2", customerID, sku)
	if err != nil {
		return false
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false
	}
	return affected > 0
}

// Clear очищает корзину покупателя целиком.
func (r *CartRepositoryPostgres) Clear(customerID int64) error {
	ctx, cancel := queryCtx()
	defer cancel()

	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE customer_id = $1", customerID); err != nil {
		return fmt.Errorf("clear cart for customer %d: %w", customerID, err)
	}
	return nil
}

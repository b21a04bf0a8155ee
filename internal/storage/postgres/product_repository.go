package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// ProductRepositoryPostgres хранит товары каталога в PostgreSQL.
type ProductRepositoryPostgres struct {
	db *sql.DB
}

// NewProductRepository создаёт репозиторий товаров поверх Store.
func NewProductRepository(store *Store) *ProductRepositoryPostgres {
	return &ProductRepositoryPostgres{db: store.DB()}
}

var _ domain.ProductRepository = (*ProductRepositoryPostgres)(nil)

// Save сохраняет новый товар. Возвращает ErrProductExists при занятом SKU.
func (r *ProductRepositoryPostgres) Save(product domain.Product) error {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO products (sku, name, price_minor, cost_minor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sku) DO NOTHING`,
		product.SKU, product.Name, product.PriceMinor, product.CostMinor,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", product.SKU, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert product %s: %w", product.SKU, err)
	}
	if affected == 0 {
		return domain.ErrProductExists
	}
	return nil
}

// Get возвращает товар по SKU.
func (r *ProductRepositoryPostgres) Get(sku string) (domain.Product, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT sku, name, price_minor, cost_minor, created_at, updated_at
		FROM products WHERE sku = $1`, sku,
	).Scan(&p.SKU, &p.Name, &p.PriceMinor, &p.CostMinor, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product %s: %w", sku, err)
	}
	return p, nil
}

// Update перезаписывает существующий товар.
func (r *ProductRepositoryPostgres) Update(product domain.Product) error {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price_minor = $3, cost_minor = $4, updated_at = $5
		WHERE sku = $1`,
		product.SKU, product.Name, product.PriceMinor, product.CostMinor, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product %s: %w", product.SKU, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product %s: %w", product.SKU, err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// Delete удаляет товар; возвращает false, если товара не было или запрос не прошёл.
func (r *ProductRepositoryPostgres) Delete(sku string) bool {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE sku = $1", sku)
	if err != nil {
		return false
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false
	}
	return affected > 0
}

// List возвращает все товары каталога, отсортированные по SKU.
func (r *ProductRepositoryPostgres) List() ([]domain.Product, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT sku, name, price_minor, cost_minor, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.PriceMinor, &p.CostMinor, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

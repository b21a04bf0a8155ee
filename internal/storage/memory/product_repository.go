package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// productRepositoryInMemory — простая in-memory реализация ProductRepository.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory каталог для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Save сохраняет новый товар, если SKU ещё не занят.
func (r *productRepositoryInMemory) Save(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.SKU]; exists {
		return domain.ErrProductExists
	}
	r.items[product.SKU] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepositoryInMemory) Get(sku string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[sku]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Update перезаписывает существующий товар.
func (r *productRepositoryInMemory) Update(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[product.SKU]; !ok {
		return domain.ErrProductNotFound
	}
	r.items[product.SKU] = product
	return nil
}

// Delete удаляет товар; false, если товара не было.
func (r *productRepositoryInMemory) Delete(sku string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[sku]; !ok {
		return false
	}
	delete(r.items, sku)
	return true
}

// List возвращает товары, упорядоченные по SKU для детерминизма.
func (r *productRepositoryInMemory) List() ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SKU < result[j].SKU
	})
	return result, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)

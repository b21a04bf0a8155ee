package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// cartRepositoryInMemory — простая in-memory реализация CartRepository.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	carts map[int64]map[string]domain.CartItem
}

// NewCartRepository возвращает in-memory хранилище корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		carts: make(map[int64]map[string]domain.CartItem),
	}
}

// Upsert добавляет позицию или заменяет количество существующей.
func (r *cartRepositoryInMemory) Upsert(item domain.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[item.CustomerID]
	if !ok {
		cart = make(map[string]domain.CartItem)
		r.carts[item.CustomerID] = cart
	}
	if existing, exists := cart[item.SKU]; exists {
		// Сохраняем исходный момент добавления.
		item.AddedAt = existing.AddedAt
	}
	cart[item.SKU] = item
	return nil
}

// Get возвращает позицию корзины или ErrCartItemNotFound.
func (r *cartRepositoryInMemory) Get(customerID int64, sku string) (domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[customerID]
	if !ok {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	item, exists := cart[sku]
	if !exists {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	return item, nil
}

// ListByCustomer возвращает корзину в порядке добавления позиций.
func (r *cartRepositoryInMemory) ListByCustomer(customerID int64) ([]domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart := r.carts[customerID]
	result := make([]domain.CartItem, 0, len(cart))
	for _, item := range cart {
		result = append(result, item)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].AddedAt.Equal(result[j].AddedAt) {
			return result[i].AddedAt.Before(result[j].AddedAt)
		}
		return result[i].SKU < result[j].SKU
	})

	return result, nil
}

// Remove удаляет позицию; false, если позиции не было.
func (r *cartRepositoryInMemory) Remove(customerID int64, sku string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[customerID]
	if !ok {
		return false
	}
	if _, exists := cart[sku]; !exists {
		return false
	}
	delete(cart, sku)
	return true
}

// Clear очищает корзину покупателя.
func (r *cartRepositoryInMemory) Clear(customerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, customerID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)

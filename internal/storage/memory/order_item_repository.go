package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderItemRepositoryInMemory — простая in-memory реализация OrderItemRepository.
type orderItemRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.OrderItem
	seq   map[string]int64 // порядок вставки внутри заказа
	next  int64
}

// NewOrderItemRepository возвращает in-memory репозиторий позиций заказов.
func NewOrderItemRepository() domain.OrderItemRepository {
	return &orderItemRepositoryInMemory{
		items: make(map[string]domain.OrderItem),
		seq:   make(map[string]int64),
	}
}

// Save сохраняет одну позицию заказа.
func (r *orderItemRepositoryInMemory) Save(item domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[item.ID] = item
	if _, exists := r.seq[item.ID]; !exists {
		r.next++
		r.seq[item.ID] = r.next
	}
	return nil
}

// Get возвращает позицию или ErrOrderItemNotFound.
func (r *orderItemRepositoryInMemory) Get(id string) (domain.OrderItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return domain.OrderItem{}, domain.ErrOrderItemNotFound
	}
	return item, nil
}

// Delete удаляет позицию; false, если позиции не было.
func (r *orderItemRepositoryInMemory) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	delete(r.seq, id)
	return true
}

// ListByOrder возвращает позиции заказа в порядке создания.
func (r *orderItemRepositoryInMemory) ListByOrder(orderID string) ([]domain.OrderItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.OrderItem, 0)
	for _, item := range r.items {
		if item.OrderID != orderID {
			continue
		}
		result = append(result, item)
	}

	sort.Slice(result, func(i, j int) bool {
		return r.seq[result[i].ID] < r.seq[result[j].ID]
	})

	return result, nil
}

var _ domain.OrderItemRepository = (*orderItemRepositoryInMemory)(nil)

package domain

import "time"

// Все репозитории дают только построчные атомарные операции. Кросс-сущностной
// транзакции у хранилища нет — именно поэтому создание заказа идёт через сагу
// с явными компенсациями, а не через один commit.

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// Save сохраняет новый товар. Возвращает ErrProductExists, если SKU занят.
	Save(product Product) error
	// Get возвращает товар по SKU или ErrProductNotFound.
	Get(sku string) (Product, error)
	// Update перезаписывает существующий товар.
	Update(product Product) error
	// Delete удаляет товар; возвращает false, если товара не было.
	Delete(sku string) bool
	// List возвращает все товары каталога.
	List() ([]Product, error)
}

// OrderRepository описывает требования к хранилищу заголовков заказов.
// Create сохраняет только заголовок: позиции пишутся отдельными строками
// через OrderItemRepository.
type OrderRepository interface {
	// Create сохраняет новый заголовок заказа. Возвращает ErrOrderExists, если ID занят.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// Update применяет обновления к заказу с учётом optimistic locking.
	Update(order Order) error
	// ListByCustomer возвращает заказы покупателя с опциональным ограничением на количество.
	ListByCustomer(customerID int64, limit int) ([]Order, error)
	// ListByStatus возвращает заказы в указанном статусе.
	ListByStatus(status OrderStatus) ([]Order, error)
}

// OrderItemRepository описывает требования к хранилищу позиций заказов.
type OrderItemRepository interface {
	// Save сохраняет одну позицию заказа.
	Save(item OrderItem) error
	// Get возвращает позицию по идентификатору или ErrOrderItemNotFound.
	Get(id string) (OrderItem, error)
	// Delete удаляет позицию; возвращает false, если позиции не было.
	// Используется сагой при откате частично записанного заказа.
	Delete(id string) bool
	// ListByOrder возвращает позиции заказа в порядке создания.
	ListByOrder(orderID string) ([]OrderItem, error)
}

// CartRepository описывает требования к хранилищу корзин.
type CartRepository interface {
	// Upsert добавляет позицию или заменяет количество существующей.
	Upsert(item CartItem) error
	// Get возвращает позицию корзины или ErrCartItemNotFound.
	Get(customerID int64, sku string) (CartItem, error)
	// ListByCustomer возвращает корзину покупателя в порядке добавления.
	ListByCustomer(customerID int64) ([]CartItem, error)
	// Remove удаляет позицию; возвращает false, если позиции не было.
	Remove(customerID int64, sku string) bool
	// Clear очищает корзину покупателя.
	Clear(customerID int64) error
}

// JournalStats описывает текущее состояние журнала резервов.
type JournalStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// JournalRepository хранит записи журнала резервов (log-first компенсации).
type JournalRepository interface {
	// Append сохраняет запись со статусом pending и возвращает её с заполненным ID.
	Append(entry JournalEntry) (JournalEntry, error)
	// MarkCommitted помечает все pending-записи заказа как committed.
	MarkCommitted(orderID string) error
	// MarkReleased помечает запись как released.
	MarkReleased(id string) error
	// ListByOrder возвращает записи журнала по заказу.
	ListByOrder(orderID string) ([]JournalEntry, error)
	// PullStale возвращает до limit pending-записей старше before.
	PullStale(before time.Time, limit int) ([]JournalEntry, error)
	// Stats возвращает сводку по незакрытым записям.
	Stats() (JournalStats, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

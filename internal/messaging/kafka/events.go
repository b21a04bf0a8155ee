package kafka

import "time"

// EventType определяет тип публикуемого события.
type EventType string

const (
	// События заказа
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypeOrderRolledBack    EventType = "order.rollback"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderPaid          EventType = "order.paid"
	EventTypeOrderRefunded      EventType = "order.refunded"

	// События склада
	EventTypeStockLow      EventType = "stock.low"
	EventTypeStockReplayed EventType = "stock.replayed"
)

// Topics для Kafka.
const (
	TopicOrderEvents = "shop.order.events"
	TopicStockEvents = "shop.stock.events"
)

// OrderEvent представляет событие жизненного цикла заказа.
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID int64                  `json:"customer_id"`
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// StockEvent представляет событие складского остатка.
type StockEvent struct {
	EventType EventType `json:"event_type"`
	SKU       string    `json:"sku"`
	Quantity  int32     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent создаёт событие заказа с текущей отметкой времени.
func NewOrderEvent(eventType EventType, orderID string, customerID int64, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}
}

// NewStockEvent создаёт событие складского остатка.
func NewStockEvent(eventType EventType, sku string, quantity int32) *StockEvent {
	return &StockEvent{
		EventType: eventType,
		SKU:       sku,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}
}

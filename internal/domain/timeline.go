package domain

import "time"

// Типы событий временной шкалы заказа.
const (
	TimelineOrderCreated       = "OrderCreated"
	TimelineOrderCancelled     = "OrderCancelled"
	TimelineOrderRolledBack    = "OrderRolledBack"
	TimelineStatusChanged      = "OrderStatusChanged"
	TimelinePaymentChanged     = "OrderPaymentChanged"
	TimelineCompensationFailed = "CompensationFailed"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

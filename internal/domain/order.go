package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, позиции и резервы зафиксированы, обработка не начата.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ взят в обработку (сборка/упаковка).
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю. Терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён, резервы возвращены на склад. Терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// orderTransitions — полная таблица разрешённых переходов статусов.
// Это единственное место в системе, где решается допустимость смены статуса;
// любое изменение статуса заказа проходит через CanTransition до записи в хранилище.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:    {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusProcessing: {OrderStatusShipped: true, OrderStatusCancelled: true},
	OrderStatusShipped:    {OrderStatusDelivered: true},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// paymentTransitions — таблица переходов статуса оплаты.
var paymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusUnpaid:   {PaymentStatusPaid: true},
	PaymentStatusPaid:     {PaymentStatusRefunded: true},
	PaymentStatusRefunded: {},
}

// IsValid сообщает, известен ли статус таблице переходов.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal сообщает, является ли статус конечным.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransition проверяет допустимость перехода from → to по таблице.
func CanTransition(from, to OrderStatus) bool {
	next, ok := orderTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// CanTransitionPayment проверяет допустимость перехода статуса оплаты.
func CanTransitionPayment(from, to PaymentStatus) bool {
	next, ok := paymentTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// OrderItem представляет одну позицию заказа.
// PriceMinor — снимок цены товара на момент оформления; последующие изменения
// цены в каталоге на уже созданные позиции не влияют.
type OrderItem struct {
	ID            string
	OrderID       string
	SKU           string
	Qty           int32
	PriceMinor    int64
	SubtotalMinor int64
	CreatedAt     time.Time
}

// Order агрегирует заголовок заказа и его позиции.
// Позиции хранятся отдельными строками (OrderItemRepository); поле Items
// заполняется при сборке агрегата для вызывающей стороны.
type Order struct {
	ID              string
	CustomerID      int64
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	AmountMinor     int64
	ShippingAddress string
	PaymentMethod   string
	Items           []OrderItem
	OrderDate       time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Transition переводит заказ в новый статус, если переход разрешён таблицей.
// При запрещённом переходе заказ не меняется.
func (o *Order) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// TransitionPayment переводит статус оплаты, если переход разрешён.
func (o *Order) TransitionPayment(to PaymentStatus) error {
	if !CanTransitionPayment(o.PaymentStatus, to) {
		return ErrInvalidTransition
	}
	o.PaymentStatus = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID <= 0 {
		errs = append(errs, ErrCustomerIDInvalid)
	}
	if o.ShippingAddress == "" {
		errs = append(errs, ErrShippingAddressRequired)
	}
	if o.PaymentMethod == "" {
		errs = append(errs, ErrPaymentMethodRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.SubtotalMinor != int64(item.Qty)*item.PriceMinor {
			errs = append(errs, ErrSubtotalMismatch)
		}
		calc += item.SubtotalMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

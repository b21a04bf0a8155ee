package domain

import "time"

// JournalStatus отражает состояние записи журнала резервов.
type JournalStatus string

const (
	// JournalStatusPending — запись создана до резервирования; резерв ещё не подтверждён заказом.
	JournalStatusPending JournalStatus = "pending"
	// JournalStatusCommitted — заказ успешно создан, резерв закреплён.
	JournalStatusCommitted JournalStatus = "committed"
	// JournalStatusReleased — резерв возвращён на склад (компенсация, отмена или sweep).
	JournalStatusReleased JournalStatus = "released"
)

// JournalEntry — запись журнала резервов. Сага пишет её ДО декремента склада
// (log-first), поэтому после сбоя между резервом и фиксацией заказа
// незакрытый резерв можно найти и вернуть повторным проходом.
type JournalEntry struct {
	ID        string
	OrderID   string
	SKU       string
	Qty       int32
	Status    JournalStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет корректность ключевых полей записи журнала.
func (e *JournalEntry) Validate() []error {
	var errs []error

	if e.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if e.SKU == "" {
		errs = append(errs, ErrProductSKURequired)
	}
	if e.Qty <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}

	return errs
}

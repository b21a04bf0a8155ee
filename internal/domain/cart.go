package domain

import "time"

// CartItem — отложенный выбор покупателя: товар и количество до оформления заказа.
// Цена в корзине не хранится: при checkout сага всегда перечитывает
// актуальную цену из каталога.
type CartItem struct {
	CustomerID int64
	SKU        string
	Qty        int32
	AddedAt    time.Time
	UpdatedAt  time.Time
}

// Validate проверяет корректность позиции корзины.
func (c *CartItem) Validate() []error {
	var errs []error

	if c.CustomerID <= 0 {
		errs = append(errs, ErrCustomerIDInvalid)
	}
	if c.SKU == "" {
		errs = append(errs, ErrProductSKURequired)
	}
	if c.Qty <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}

	return errs
}

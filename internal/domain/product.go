package domain

import "time"

// Product описывает товар каталога.
// Цены хранятся в минимальных денежных единицах (копейки/центы).
// На время прохода саги цена считается неизменной: она читается один раз
// и фиксируется в позиции заказа.
type Product struct {
	SKU        string
	Name       string
	PriceMinor int64
	CostMinor  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate проверяет корректность ключевых полей товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.SKU == "" {
		errs = append(errs, ErrProductSKURequired)
	}
	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.CostMinor < 0 {
		errs = append(errs, ErrProductCostInvalid)
	}

	return errs
}

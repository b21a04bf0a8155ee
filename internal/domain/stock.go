package domain

import "time"

// StockRecord описывает складской остаток по одному SKU.
// Записью владеет StockLedger: все мутации количества идут только через его
// атомарные операции, Quantity никогда не опускается ниже нуля.
type StockRecord struct {
	SKU               string
	Quantity          int32
	ReorderLevel      int32
	WarehouseLocation string
	LastRestocked     time.Time
}

// IsLow сообщает, достиг ли остаток порога дозаказа.
func (r *StockRecord) IsLow() bool {
	return r.Quantity <= r.ReorderLevel
}

// Validate проверяет корректность полей складской записи.
func (r *StockRecord) Validate() []error {
	var errs []error

	if r.SKU == "" {
		errs = append(errs, ErrProductSKURequired)
	}
	if r.Quantity < 0 {
		errs = append(errs, ErrStockQtyInvalid)
	}
	if r.ReorderLevel < 0 {
		errs = append(errs, ErrReorderLevelInvalid)
	}

	return errs
}

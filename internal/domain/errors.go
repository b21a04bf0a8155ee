package domain

import "errors"

var (
	// Ошибка некорректного идентификатора покупателя.
	ErrCustomerIDInvalid = errors.New("customer_id must be greater than zero")
	// Ошибка отсутствующего адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping address is required")
	// Ошибка отсутствующего способа оплаты.
	ErrPaymentMethodRequired = errors.New("payment method is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия subtotal позиции произведению qty * price.
	ErrSubtotalMismatch = errors.New("item subtotal does not match qty * price")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")

	// Ошибка отсутствующего идентификатора заказа в позициях/журнале.
	ErrOrderIDRequired = errors.New("order_id is required")

	// Ошибка отсутствующего SKU товара.
	ErrProductSKURequired = errors.New("product sku is required")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// Ошибка отрицательной закупочной цены товара.
	ErrProductCostInvalid = errors.New("product cost must be non-negative")

	// Ошибка отрицательного количества на складе.
	ErrStockQtyInvalid = errors.New("stock quantity must be non-negative")
	// Ошибка отрицательного порога дозаказа.
	ErrReorderLevelInvalid = errors.New("reorder level must be non-negative")

	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists возвращается при попытке сохранить товар с занятым SKU.
	ErrProductExists = errors.New("product already exists")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при попытке создать заказ с занятым ID.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderItemNotFound возвращается, если позиция заказа не найдена.
	ErrOrderItemNotFound = errors.New("order item not found")
	// ErrCartItemNotFound возвращается, если позиции нет в корзине.
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrJournalEntryNotFound возвращается, если запись журнала резервов не найдена.
	ErrJournalEntryNotFound = errors.New("journal entry not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")

	// ErrInsufficientStock — на складе недостаточно товара для резервирования.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition — запрошенный переход статуса запрещён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCompensationFailed — шаг компенсации (возврат резерва/удаление позиции) не выполнился.
	// Фиксируется рядом с первичной ошибкой, но не подменяет её.
	ErrCompensationFailed = errors.New("compensation step failed")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderItemNotFound) ||
		errors.Is(err, ErrCartItemNotFound) ||
		errors.Is(err, ErrJournalEntryNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

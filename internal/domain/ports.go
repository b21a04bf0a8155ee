package domain

// StockLedger — единственная точка мутации складских остатков.
// Все операции неблокирующие по контракту: при неизвестном SKU или
// некорректном аргументе возвращается false без каких-либо изменений,
// вызывающая сторона обязана трактовать false как «ничего не произошло».
type StockLedger interface {
	// CheckAvailability сообщает, хватает ли остатка под requested qty (qty >= 0).
	// Только чтение; результат носит рекомендательный характер — между проверкой
	// и резервом остаток может измениться конкурентным резервом.
	CheckAvailability(sku string, qty int32) bool
	// Reserve атомарно проверяет остаток и уменьшает его одним шагом (qty > 0).
	// Возвращает false без мутации, если остатка не хватает или SKU неизвестен.
	Reserve(sku string, qty int32) bool
	// Release возвращает qty единиц на склад (qty > 0). Используется для
	// компенсаций и отмен; только прибавляет, поэтому остаток не может уйти в минус.
	Release(sku string, qty int32) bool
	// SetExact выставляет точное значение остатка (qty >= 0, административная коррекция).
	SetExact(sku string, qty int32) bool
	// MarkRestocked обновляет отметку последнего пополнения.
	MarkRestocked(sku string) bool
	// IsLowStock сообщает, достиг ли остаток порога дозаказа.
	IsLowStock(sku string) bool
}

// Cache — сквозной кэш чтения с фиксированным TTL, задаваемым реализацией.
// Кэш никогда не является источником истины для складских решений: все
// решения по остаткам принимает StockLedger напрямую.
type Cache interface {
	// Get возвращает значение и признак попадания; протухшие записи считаются промахом.
	Get(key string) ([]byte, bool)
	// Put кладёт значение с фиксированным TTL реализации.
	Put(key string, value []byte)
	// Invalidate удаляет одну запись.
	Invalidate(key string)
	// InvalidateAll очищает кэш целиком.
	InvalidateAll()
}

package inventory

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Ledger — владелец складских остатков: lock-guarded таблица StockRecord по SKU.
// Таблица наружу не отдаётся, доступны только атомарные операции.
// Мутации (Reserve/Release/SetExact) взаимно исключены общей блокировкой,
// поэтому конкурентные резервы одного SKU не могут увести остаток в минус.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*domain.StockRecord
	logger  *log.Entry
	now     func() time.Time
}

// NewLedger создаёт пустую складскую таблицу.
func NewLedger(logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "stock-ledger")
	}
	return &Ledger{
		records: make(map[string]*domain.StockRecord),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewLedgerWithClock создаёт таблицу с подменяемыми часами (для тестов).
func NewLedgerWithClock(logger *log.Entry, now func() time.Time) *Ledger {
	ledger := NewLedger(logger)
	if now != nil {
		ledger.now = now
	}
	return ledger
}

// Add регистрирует складскую запись для нового товара каталога.
// Возвращает false, если запись некорректна или SKU уже занят.
func (l *Ledger) Add(record domain.StockRecord) bool {
	if len(record.Validate()) != 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[record.SKU]; exists {
		return false
	}
	stored := record
	if stored.LastRestocked.IsZero() {
		stored.LastRestocked = l.now()
	}
	l.records[record.SKU] = &stored
	return true
}

// Remove удаляет складскую запись вместе с товаром каталога.
func (l *Ledger) Remove(sku string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[sku]; !ok {
		return false
	}
	delete(l.records, sku)
	return true
}

// Get возвращает копию складской записи.
func (l *Ledger) Get(sku string) (domain.StockRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.records[sku]
	if !ok {
		return domain.StockRecord{}, false
	}
	return *record, true
}

// CheckAvailability сообщает, хватает ли остатка под qty. Только чтение,
// результат рекомендательный: к моменту Reserve остаток может измениться.
func (l *Ledger) CheckAvailability(sku string, qty int32) bool {
	if qty < 0 {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.records[sku]
	if !ok {
		return false
	}
	return record.Quantity >= qty
}

// Reserve атомарно проверяет остаток и уменьшает его одним шагом под блокировкой.
// Именно эта операция гарантирует, что два конкурентных резерва одного SKU
// не спишут в сумме больше, чем есть на складе.
func (l *Ledger) Reserve(sku string, qty int32) bool {
	if qty <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[sku]
	if !ok {
		return false
	}
	if record.Quantity < qty {
		l.logger.WithFields(log.Fields{
			"sku":       sku,
			"requested": qty,
			"available": record.Quantity,
		}).Debug("reserve rejected: insufficient stock")
		return false
	}
	record.Quantity -= qty
	return true
}

// Release возвращает qty единиц на склад. Только прибавляет, поэтому
// по построению не может увести остаток в минус.
func (l *Ledger) Release(sku string, qty int32) bool {
	if qty <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[sku]
	if !ok {
		return false
	}
	record.Quantity += qty
	return true
}

// SetExact выставляет точное значение остатка (административная коррекция).
func (l *Ledger) SetExact(sku string, qty int32) bool {
	if qty < 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[sku]
	if !ok {
		return false
	}
	record.Quantity = qty
	return true
}

// MarkRestocked обновляет отметку последнего пополнения.
func (l *Ledger) MarkRestocked(sku string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[sku]
	if !ok {
		return false
	}
	record.LastRestocked = l.now()
	return true
}

// IsLowStock сообщает, достиг ли остаток порога дозаказа.
func (l *Ledger) IsLowStock(sku string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.records[sku]
	if !ok {
		return false
	}
	return record.IsLow()
}

// LowStock возвращает копии всех записей с остатком не выше порога дозаказа.
func (l *Ledger) LowStock() []domain.StockRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []domain.StockRecord
	for _, record := range l.records {
		if record.IsLow() {
			result = append(result, *record)
		}
	}
	return result
}

// Len возвращает число складских записей.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

var _ domain.StockLedger = (*Ledger)(nil)

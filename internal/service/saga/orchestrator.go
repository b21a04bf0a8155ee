package saga

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// ItemRequest — одна запрошенная позиция заказа: товар и количество.
// Цена не передаётся: сага всегда читает актуальную цену из каталога.
type ItemRequest struct {
	SKU string
	Qty int32
}

// CreateOrderRequest — вход операции создания заказа.
type CreateOrderRequest struct {
	CustomerID      int64
	Items           []ItemRequest
	ShippingAddress string
	PaymentMethod   string
}

// Orchestrator описывает операции саги заказа.
type Orchestrator interface {
	// CreateOrder проводит заказ через валидацию, запись и резервирование,
	// с полным откатом частичных эффектов при любой ошибке.
	CreateOrder(req CreateOrderRequest) (domain.Order, error)
	// CancelOrder отменяет заказ из pending/processing, возвращая резервы на склад.
	CancelOrder(orderID string) error
	// UpdateOrderStatus меняет статус через таблицу переходов.
	UpdateOrderStatus(orderID string, status domain.OrderStatus) error
	// MarkPaid переводит оплату unpaid → paid.
	MarkPaid(orderID string) error
	// MarkRefunded переводит оплату paid → refunded.
	MarkRefunded(orderID string) error
	// GetOrder возвращает заказ с собранными позициями.
	GetOrder(orderID string) (domain.Order, error)
}

// orchestrator реализует сагу создания заказа с ручными компенсациями.
// У хранилища нет кросс-сущностной транзакции, поэтому атомарность
// «позиции + резервы» обеспечивается явным откатом, а не commit'ом.
type orchestrator struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	items    domain.OrderItemRepository
	journal  domain.JournalRepository
	timeline domain.TimelineRepository
	ledger   domain.StockLedger
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
	producer *kafka.Producer // опциональный producer; nil — события не публикуются
}

// NewOrchestrator создаёт рабочий экземпляр саги.
func NewOrchestrator(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	items domain.OrderItemRepository,
	journal domain.JournalRepository,
	timeline domain.TimelineRepository,
	ledger domain.StockLedger,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "order-saga")
	}
	return &orchestrator{
		products: products,
		orders:   orders,
		items:    items,
		journal:  journal,
		timeline: timeline,
		ledger:   ledger,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
	}
}

// NewOrchestratorWithKafka создаёт сагу с публикацией событий заказа в Kafka.
func NewOrchestratorWithKafka(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	items domain.OrderItemRepository,
	journal domain.JournalRepository,
	timeline domain.TimelineRepository,
	ledger domain.StockLedger,
	producer *kafka.Producer,
	logger *log.Entry,
) Orchestrator {
	o := NewOrchestrator(products, orders, items, journal, timeline, ledger, logger).(*orchestrator)
	o.producer = producer
	return o
}

// NewOrchestratorWithoutMetrics создаёт сагу без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	items domain.OrderItemRepository,
	journal domain.JournalRepository,
	timeline domain.TimelineRepository,
	ledger domain.StockLedger,
	logger *log.Entry,
) Orchestrator {
	o := NewOrchestrator(products, orders, items, journal, timeline, ledger, logger).(*orchestrator)
	o.metrics = nil
	return o
}

// pricedItem — позиция после валидационного прохода: цена зафиксирована.
type pricedItem struct {
	sku      string
	qty      int32
	price    int64
	subtotal int64
}

// reservedStock — выполненный резерв и его журнальная запись; нужен для отката.
type reservedStock struct {
	journalID string
	sku       string
	qty       int32
}

// CreateOrder проводит заказ по шагам:
//  1. валидация и прайсинг без каких-либо мутаций;
//  2. запись заголовка (pending/unpaid);
//  3. попозиционный цикл: запись позиции → журнал → атомарный резерв,
//     с полным откатом сделанного при ошибке любого шага;
//  4. фиксация журнала и возврат заказа.
//
// Между проверкой доступности шага 1 и резервом шага 3 остаток может забрать
// конкурентная сага — принятая гонка. Поэтому резерв не доверяет шагу 1
// и сам атомарно перепроверяет остаток.
func (o *orchestrator) CreateOrder(req CreateOrderRequest) (domain.Order, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.SagaStarted()
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.SagaFinished()
			o.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if err := validateRequest(req); err != nil {
		if o.metrics != nil {
			o.metrics.RecordOrderFailed()
		}
		return domain.Order{}, newError(ReasonValidation, err)
	}

	// Шаг 1: валидация и прайсинг, только чтение.
	stepStart := time.Now()
	priced, total, err := o.priceItems(req.Items)
	if o.metrics != nil {
		o.metrics.RecordStepDuration("validate", time.Since(stepStart))
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordOrderFailed()
		}
		return domain.Order{}, err
	}

	// Шаг 2: заголовок заказа. При ошибке здесь ничего не записано и не
	// зарезервировано, компенсировать нечего.
	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      req.CustomerID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		AmountMinor:     total,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		OrderDate:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.orders.Create(order); err != nil {
		if o.metrics != nil {
			o.metrics.RecordOrderFailed()
		}
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order header")
		return domain.Order{}, newError(ReasonPersistence, fmt.Errorf("create order header: %w", err))
	}

	// Шаг 3: попозиционный цикл в порядке запроса.
	stepStart = time.Now()
	persisted := make([]domain.OrderItem, 0, len(priced))
	reserved := make([]reservedStock, 0, len(priced))

	for _, p := range priced {
		item := domain.OrderItem{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			SKU:           p.sku,
			Qty:           p.qty,
			PriceMinor:    p.price,
			SubtotalMinor: p.subtotal,
			CreatedAt:     now,
		}
		if err := o.items.Save(item); err != nil {
			return domain.Order{}, o.rollback(&order, persisted, reserved, ReasonPersistence,
				fmt.Errorf("save order item %s: %w", p.sku, err))
		}
		persisted = append(persisted, item)

		// Журнальная запись пишется до декремента (log-first): после сбоя
		// между резервом и фиксацией заказа незакрытый резерв найдёт sweeper.
		entry, jerr := o.journal.Append(domain.JournalEntry{
			OrderID: order.ID,
			SKU:     p.sku,
			Qty:     p.qty,
		})
		if jerr != nil {
			return domain.Order{}, o.rollback(&order, persisted, reserved, ReasonPersistence,
				fmt.Errorf("append reservation journal for %s: %w", p.sku, jerr))
		}

		if !o.ledger.Reserve(p.sku, p.qty) {
			// Шаг 1 доступность уже проверял: сюда попадаем, когда остаток
			// успел забрать конкурентный резерв.
			if o.metrics != nil {
				o.metrics.RecordReserveConflict()
			}
			if err := o.journal.MarkReleased(entry.ID); err != nil {
				o.logger.WithError(err).WithField("entry_id", entry.ID).Warn("failed to close journal entry after lost reserve")
			}
			return domain.Order{}, o.rollback(&order, persisted, reserved, ReasonInsufficientStock,
				fmt.Errorf("%w: %s", domain.ErrInsufficientStock, p.sku))
		}
		reserved = append(reserved, reservedStock{journalID: entry.ID, sku: p.sku, qty: p.qty})
	}
	if o.metrics != nil {
		o.metrics.RecordStepDuration("commit_items", time.Since(stepStart))
	}

	// Шаг 4: фиксация журнала. Ошибка здесь не откатывает заказ: резервы
	// корректны, sweeper сверит незакрытые записи со статусом заказа.
	if err := o.journal.MarkCommitted(order.ID); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to commit reservation journal")
	}

	order.Items = persisted
	o.appendTimeline(order.ID, domain.TimelineOrderCreated, "")
	o.publishOrderEvent(kafka.EventTypeOrderCreated, &order, map[string]interface{}{
		"amount_minor": order.AmountMinor,
		"items_count":  len(order.Items),
	})
	if o.metrics != nil {
		o.metrics.RecordOrderCreated()
	}
	o.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"amount_minor": order.AmountMinor,
		"items":        len(order.Items),
	}).Info("order created")

	return order, nil
}

// validateRequest проверяет предусловия до каких-либо мутаций.
func validateRequest(req CreateOrderRequest) error {
	if req.CustomerID <= 0 {
		return domain.ErrCustomerIDInvalid
	}
	if len(req.Items) == 0 {
		return domain.ErrItemsRequired
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return domain.ErrShippingAddressRequired
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return domain.ErrPaymentMethodRequired
	}
	for _, item := range req.Items {
		if item.SKU == "" {
			return domain.ErrProductSKURequired
		}
		if item.Qty <= 0 {
			return domain.ErrItemQtyInvalid
		}
	}
	return nil
}

// priceItems выполняет валидационно-прайсинговый проход: ищет товары,
// проверяет доступность и фиксирует цены. Ничего не резервирует и не пишет.
// Частично доступная корзина отклоняется целиком.
func (o *orchestrator) priceItems(items []ItemRequest) ([]pricedItem, int64, error) {
	priced := make([]pricedItem, 0, len(items))
	var total int64

	for _, item := range items {
		product, err := o.products.Get(item.SKU)
		if err != nil {
			return nil, 0, newError(ReasonNotFound, fmt.Errorf("product %s: %w", item.SKU, err))
		}
		if !o.ledger.CheckAvailability(item.SKU, item.Qty) {
			return nil, 0, newError(ReasonInsufficientStock,
				fmt.Errorf("%w: %s x%d", domain.ErrInsufficientStock, item.SKU, item.Qty))
		}
		subtotal := product.PriceMinor * int64(item.Qty)
		priced = append(priced, pricedItem{
			sku:      item.SKU,
			qty:      item.Qty,
			price:    product.PriceMinor,
			subtotal: subtotal,
		})
		total += subtotal
	}

	return priced, total, nil
}

// rollback снимает все частичные эффекты цикла фиксации: возвращает резервы
// ранних позиций, удаляет записанные позиции и закрывает заголовок статусом
// cancelled. Ошибка любого компенсационного шага не прерывает остальные шаги
// и не подменяет первичную причину — она логируется, попадает в timeline
// и возвращается рядом с причиной.
func (o *orchestrator) rollback(order *domain.Order, persisted []domain.OrderItem, reserved []reservedStock, reason Reason, cause error) error {
	if o.metrics != nil {
		o.metrics.RecordRollback()
		o.metrics.RecordOrderFailed()
	}

	var compensation []error

	for _, res := range reserved {
		if !o.ledger.Release(res.sku, res.qty) {
			compensation = append(compensation,
				fmt.Errorf("%w: release %s x%d", domain.ErrCompensationFailed, res.sku, res.qty))
			continue
		}
		if err := o.journal.MarkReleased(res.journalID); err != nil {
			compensation = append(compensation,
				fmt.Errorf("%w: close journal entry %s: %v", domain.ErrCompensationFailed, res.journalID, err))
		}
	}

	for _, item := range persisted {
		if !o.items.Delete(item.ID) {
			compensation = append(compensation,
				fmt.Errorf("%w: delete order item %s", domain.ErrCompensationFailed, item.ID))
		}
	}

	// Заголовки заказов не удаляются: неудавшийся заказ закрывается статусом.
	if err := o.persistWithRetry(order, func(fresh *domain.Order) error {
		return fresh.Transition(domain.OrderStatusCancelled)
	}); err != nil {
		compensation = append(compensation,
			fmt.Errorf("%w: cancel order header: %v", domain.ErrCompensationFailed, err))
	}

	for _, comp := range compensation {
		if o.metrics != nil {
			o.metrics.RecordCompensationFailure()
		}
		o.logger.WithError(comp).WithField("order_id", order.ID).Error("compensation step failed")
		o.appendTimeline(order.ID, domain.TimelineCompensationFailed, comp.Error())
	}

	o.appendTimeline(order.ID, domain.TimelineOrderRolledBack, cause.Error())
	o.publishOrderEvent(kafka.EventTypeOrderRolledBack, order, map[string]interface{}{
		"reason": cause.Error(),
	})
	o.logger.WithError(cause).WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Warn("checkout saga rolled back")

	return &Error{Reason: reason, Err: cause, Compensation: compensation}
}

// CancelOrder отменяет заказ. Допустим только из pending/processing: это
// единственные статусы, из которых таблица разрешает переход в cancelled.
// Возврат склада выполняется до смены статуса; если смена после этого не
// удалась, система остаётся с восстановленным остатком и старым статусом —
// известное окно, фиксируется в timeline, а не замалчивается.
func (o *orchestrator) CancelOrder(orderID string) error {
	order, err := o.orders.Get(orderID)
	if err != nil {
		return newError(reasonFor(err), fmt.Errorf("load order: %w", err))
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusCancelled) {
		return newError(ReasonInvalidTransition,
			fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, domain.OrderStatusCancelled))
	}

	items, err := o.items.ListByOrder(orderID)
	if err != nil {
		return newError(ReasonPersistence, fmt.Errorf("load order items: %w", err))
	}

	var compensation []error
	for _, item := range items {
		if !o.ledger.Release(item.SKU, item.Qty) {
			compensation = append(compensation,
				fmt.Errorf("%w: release %s x%d", domain.ErrCompensationFailed, item.SKU, item.Qty))
			continue
		}
		o.ledger.MarkRestocked(item.SKU)
	}

	entries, jerr := o.journal.ListByOrder(orderID)
	if jerr != nil {
		o.logger.WithError(jerr).WithField("order_id", orderID).Warn("failed to load journal entries for cancel")
	}
	for _, entry := range entries {
		if entry.Status == domain.JournalStatusReleased {
			continue
		}
		if err := o.journal.MarkReleased(entry.ID); err != nil {
			o.logger.WithError(err).WithField("entry_id", entry.ID).Warn("failed to close journal entry on cancel")
		}
	}

	for _, comp := range compensation {
		if o.metrics != nil {
			o.metrics.RecordCompensationFailure()
		}
		o.logger.WithError(comp).WithField("order_id", orderID).Error("compensation step failed")
		o.appendTimeline(orderID, domain.TimelineCompensationFailed, comp.Error())
	}

	if err := o.persistWithRetry(&order, func(fresh *domain.Order) error {
		return fresh.Transition(domain.OrderStatusCancelled)
	}); err != nil {
		o.appendTimeline(orderID, domain.TimelineCompensationFailed,
			"stock released but status flip failed: "+err.Error())
		return &Error{Reason: reasonFor(err), Err: fmt.Errorf("persist cancelled status: %w", err), Compensation: compensation}
	}

	if o.metrics != nil {
		o.metrics.RecordOrderCancelled()
	}
	o.appendTimeline(orderID, domain.TimelineOrderCancelled, "")
	o.publishOrderEvent(kafka.EventTypeOrderCancelled, &order, nil)
	o.logger.WithField("order_id", orderID).Info("order cancelled")

	if len(compensation) > 0 {
		return &Error{Reason: ReasonPersistence, Err: domain.ErrCompensationFailed, Compensation: compensation}
	}
	return nil
}

// UpdateOrderStatus меняет статус заказа через таблицу переходов.
// Запрос отмены делегируется CancelOrder: отмена обязана вернуть резервы,
// голая смена статуса оставила бы склад без товара.
func (o *orchestrator) UpdateOrderStatus(orderID string, status domain.OrderStatus) error {
	if !status.IsValid() {
		return newError(ReasonValidation, fmt.Errorf("unknown order status %q", status))
	}
	if status == domain.OrderStatusCancelled {
		return o.CancelOrder(orderID)
	}

	order, err := o.orders.Get(orderID)
	if err != nil {
		return newError(reasonFor(err), fmt.Errorf("load order: %w", err))
	}
	if !domain.CanTransition(order.Status, status) {
		return newError(ReasonInvalidTransition,
			fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, status))
	}

	if err := o.persistWithRetry(&order, func(fresh *domain.Order) error {
		return fresh.Transition(status)
	}); err != nil {
		return newError(reasonFor(err), fmt.Errorf("persist status: %w", err))
	}

	o.appendTimeline(orderID, domain.TimelineStatusChanged, string(status))
	o.publishOrderEvent(kafka.EventTypeOrderStatusChanged, &order, nil)
	return nil
}

// MarkPaid переводит оплату заказа unpaid → paid.
func (o *orchestrator) MarkPaid(orderID string) error {
	order, err := o.orders.Get(orderID)
	if err != nil {
		return newError(reasonFor(err), fmt.Errorf("load order: %w", err))
	}

	if err := o.persistWithRetry(&order, func(fresh *domain.Order) error {
		return fresh.TransitionPayment(domain.PaymentStatusPaid)
	}); err != nil {
		return newError(reasonFor(err), fmt.Errorf("persist payment status: %w", err))
	}

	o.appendTimeline(orderID, domain.TimelinePaymentChanged, string(domain.PaymentStatusPaid))
	o.publishOrderEvent(kafka.EventTypeOrderPaid, &order, nil)
	return nil
}

// MarkRefunded переводит оплату заказа paid → refunded. Складские резервы
// не трогаются: возврат денег и возврат товара — независимые операции.
func (o *orchestrator) MarkRefunded(orderID string) error {
	order, err := o.orders.Get(orderID)
	if err != nil {
		return newError(reasonFor(err), fmt.Errorf("load order: %w", err))
	}

	if err := o.persistWithRetry(&order, func(fresh *domain.Order) error {
		return fresh.TransitionPayment(domain.PaymentStatusRefunded)
	}); err != nil {
		return newError(reasonFor(err), fmt.Errorf("persist payment status: %w", err))
	}

	o.appendTimeline(orderID, domain.TimelinePaymentChanged, string(domain.PaymentStatusRefunded))
	o.publishOrderEvent(kafka.EventTypeOrderRefunded, &order, nil)
	return nil
}

// GetOrder возвращает заказ с собранными позициями.
func (o *orchestrator) GetOrder(orderID string) (domain.Order, error) {
	order, err := o.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, newError(reasonFor(err), err)
	}
	items, err := o.items.ListByOrder(orderID)
	if err != nil {
		return domain.Order{}, newError(ReasonPersistence, fmt.Errorf("load order items: %w", err))
	}
	order.Items = items
	return order, nil
}

// persistWithRetry применяет мутацию к заказу и сохраняет его, повторяя
// попытку при конфликте версий: заказ перечитывается, мутация применяется
// к свежему состоянию (переход заново проверяется таблицей).
func (o *orchestrator) persistWithRetry(order *domain.Order, apply func(*domain.Order) error) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		working := *order
		if err := apply(&working); err != nil {
			return err
		}
		prevVersion := working.Version

		if err := o.orders.Update(working); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				o.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  working.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := o.orders.Get(order.ID)
				if loadErr != nil {
					o.logger.WithError(loadErr).WithField("order_id", order.ID).Error("failed to reload order after conflict")
					return loadErr
				}
				*order = fresh

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order")
			return err
		}

		working.Version = prevVersion + 1
		*order = working
		return nil
	}

	return domain.ErrOrderVersionConflict
}

func (o *orchestrator) appendTimeline(orderID, eventType, reason string) {
	if o.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := o.timeline.Append(event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	}
}

// publishOrderEvent публикует событие заказа в Kafka (если producer настроен).
func (o *orchestrator) publishOrderEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if o.producer == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerID, string(order.Status), metadata)
	if err := o.producer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		// Kafka опциональна: ошибку логируем, сагу не прерываем.
		o.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

var _ Orchestrator = (*orchestrator)(nil)

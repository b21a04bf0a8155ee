package saga_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/inventory"
	"github.com/vladislavdragonenkov/shop/internal/service/saga"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

// fixture собирает сагу на in-memory хранилище с двумя товарами на складе.
type fixture struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	items    domain.OrderItemRepository
	journal  domain.JournalRepository
	timeline domain.TimelineRepository
	ledger   *inventory.Ledger
	saga     saga.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		products: memory.NewProductRepository(),
		orders:   memory.NewOrderRepository(),
		items:    memory.NewOrderItemRepository(),
		journal:  memory.NewJournalRepository(),
		timeline: memory.NewTimelineRepository(),
		ledger:   inventory.NewLedger(nil),
	}

	now := time.Now().UTC()
	for _, p := range []struct {
		sku   string
		price int64
		stock int32
	}{
		{"sku-a", 100, 10},
		{"sku-b", 250, 5},
	} {
		if err := f.products.Save(domain.Product{
			SKU: p.sku, Name: "product " + p.sku, PriceMinor: p.price, CostMinor: p.price / 2,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("save product %s: %v", p.sku, err)
		}
		if !f.ledger.Add(domain.StockRecord{SKU: p.sku, Quantity: p.stock, ReorderLevel: 1}) {
			t.Fatalf("add stock for %s", p.sku)
		}
	}

	f.saga = saga.NewOrchestratorWithoutMetrics(
		f.products, f.orders, f.items, f.journal, f.timeline, f.ledger, nil)
	return f
}

func (f *fixture) rebuildSaga() {
	f.saga = saga.NewOrchestratorWithoutMetrics(
		f.products, f.orders, f.items, f.journal, f.timeline, f.ledger, nil)
}

func (f *fixture) stockOf(t *testing.T, sku string) int32 {
	t.Helper()
	record, ok := f.ledger.Get(sku)
	if !ok {
		t.Fatalf("no stock record for %s", sku)
	}
	return record.Quantity
}

func validRequest() saga.CreateOrderRequest {
	return saga.CreateOrderRequest{
		CustomerID:      42,
		Items:           []saga.ItemRequest{{SKU: "sku-a", Qty: 2}, {SKU: "sku-b", Qty: 1}},
		ShippingAddress: "Main street 1",
		PaymentMethod:   "card",
	}
}

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("new order must be pending, got %s", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Errorf("new order must be unpaid, got %s", order.PaymentStatus)
	}
	// 2*100 + 1*250
	if order.AmountMinor != 450 {
		t.Errorf("expected amount 450, got %d", order.AmountMinor)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Errorf("created order violates invariants: %v", errs)
	}

	if got := f.stockOf(t, "sku-a"); got != 8 {
		t.Errorf("sku-a stock: expected 8, got %d", got)
	}
	if got := f.stockOf(t, "sku-b"); got != 4 {
		t.Errorf("sku-b stock: expected 4, got %d", got)
	}

	entries, _ := f.journal.ListByOrder(order.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Status != domain.JournalStatusCommitted {
			t.Errorf("journal entry %s must be committed, got %s", entry.ID, entry.Status)
		}
	}

	events, _ := f.timeline.List(order.ID)
	if len(events) != 1 || events[0].Type != domain.TimelineOrderCreated {
		t.Errorf("expected single OrderCreated timeline event, got %v", events)
	}
}

// Цена фиксируется на момент оформления: изменение каталога после checkout
// не меняет записанные позиции.
func TestCreateOrder_PriceSnapshot(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	product, _ := f.products.Get("sku-a")
	product.PriceMinor = 999
	if err := f.products.Update(product); err != nil {
		t.Fatalf("update price: %v", err)
	}

	got, err := f.saga.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	for _, item := range got.Items {
		if item.SKU == "sku-a" && item.PriceMinor != 100 {
			t.Fatalf("price snapshot must survive catalog update, got %d", item.PriceMinor)
		}
	}
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		mut  func(*saga.CreateOrderRequest)
	}{
		{"no customer", func(r *saga.CreateOrderRequest) { r.CustomerID = 0 }},
		{"no items", func(r *saga.CreateOrderRequest) { r.Items = nil }},
		{"blank address", func(r *saga.CreateOrderRequest) { r.ShippingAddress = "  " }},
		{"blank payment method", func(r *saga.CreateOrderRequest) { r.PaymentMethod = "" }},
		{"zero qty", func(r *saga.CreateOrderRequest) { r.Items[0].Qty = 0 }},
		{"empty sku", func(r *saga.CreateOrderRequest) { r.Items[0].SKU = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mut(&req)

			_, err := f.saga.CreateOrder(req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := saga.ReasonOf(err); got != saga.ReasonValidation {
				t.Fatalf("expected validation reason, got %s", got)
			}
		})
	}

	// Ничего не должно быть списано или записано.
	if got := f.stockOf(t, "sku-a"); got != 10 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	if orders, _ := f.orders.ListByCustomer(42, 0); len(orders) != 0 {
		t.Fatalf("no orders must be persisted, got %d", len(orders))
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.Items = append(req.Items, saga.ItemRequest{SKU: "ghost", Qty: 1})

	_, err := f.saga.CreateOrder(req)
	if err == nil {
		t.Fatal("expected error for unknown product")
	}
	if got := saga.ReasonOf(err); got != saga.ReasonNotFound {
		t.Fatalf("expected not_found reason, got %s", got)
	}
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound in chain, got %v", err)
	}

	// Отказ на прайсинге: склад не тронут даже для существующих позиций.
	if got := f.stockOf(t, "sku-a"); got != 10 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestCreateOrder_InsufficientStockAtPricing(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.Items[1].Qty = 6 // на складе 5

	_, err := f.saga.CreateOrder(req)
	if got := saga.ReasonOf(err); got != saga.ReasonInsufficientStock {
		t.Fatalf("expected insufficient_stock reason, got %s (%v)", got, err)
	}
	if got := f.stockOf(t, "sku-a"); got != 10 {
		t.Fatalf("stock of other items must be untouched, got %d", got)
	}
}

// flakyItemRepo отказывает в сохранении после заданного числа успехов.
type flakyItemRepo struct {
	domain.OrderItemRepository
	savesLeft int
}

func (r *flakyItemRepo) Save(item domain.OrderItem) error {
	if r.savesLeft <= 0 {
		return errors.New("disk full")
	}
	r.savesLeft--
	return r.OrderItemRepository.Save(item)
}

func TestCreateOrder_RollbackOnItemPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.items = &flakyItemRepo{OrderItemRepository: f.items, savesLeft: 1}
	f.rebuildSaga()

	_, err := f.saga.CreateOrder(validRequest())
	if err == nil {
		t.Fatal("expected persistence failure")
	}
	if got := saga.ReasonOf(err); got != saga.ReasonPersistence {
		t.Fatalf("expected persistence reason, got %s", got)
	}

	var sagaErr *saga.Error
	if !errors.As(err, &sagaErr) {
		t.Fatalf("expected *saga.Error, got %T", err)
	}
	if len(sagaErr.Compensation) != 0 {
		t.Fatalf("compensation must succeed cleanly, got %v", sagaErr.Compensation)
	}

	// Первая позиция была записана и зарезервирована — всё возвращено.
	if got := f.stockOf(t, "sku-a"); got != 10 {
		t.Errorf("sku-a stock must be restored, got %d", got)
	}
	if got := f.stockOf(t, "sku-b"); got != 5 {
		t.Errorf("sku-b stock must be untouched, got %d", got)
	}

	// Заголовок закрыт отменой, а не удалён.
	orders, _ := f.orders.ListByStatus(domain.OrderStatusCancelled)
	if len(orders) != 1 {
		t.Fatalf("expected cancelled header, got %d", len(orders))
	}
	orderID := orders[0].ID

	if items, _ := f.items.ListByOrder(orderID); len(items) != 0 {
		t.Errorf("persisted items must be deleted, got %d", len(items))
	}
	entries, _ := f.journal.ListByOrder(orderID)
	for _, entry := range entries {
		if entry.Status != domain.JournalStatusReleased {
			t.Errorf("journal entry %s must be released, got %s", entry.ID, entry.Status)
		}
	}
	events, _ := f.timeline.List(orderID)
	foundRollback := false
	for _, event := range events {
		if event.Type == domain.TimelineOrderRolledBack {
			foundRollback = true
		}
	}
	if !foundRollback {
		t.Error("rollback must leave an OrderRolledBack timeline event")
	}
}

// stealingLedger симулирует конкурентный резерв: проверка доступности видит
// остаток, но к моменту резерва указанного SKU его уже забрали.
type stealingLedger struct {
	domain.StockLedger
	victim string
}

func (l *stealingLedger) Reserve(sku string, qty int32) bool {
	if sku == l.victim {
		return false
	}
	return l.StockLedger.Reserve(sku, qty)
}

func TestCreateOrder_RollbackOnLostReserve(t *testing.T) {
	f := newFixture(t)
	stealing := &stealingLedger{StockLedger: f.ledger, victim: "sku-b"}
	f.saga = saga.NewOrchestratorWithoutMetrics(
		f.products, f.orders, f.items, f.journal, f.timeline, stealing, nil)

	_, err := f.saga.CreateOrder(validRequest())
	if got := saga.ReasonOf(err); got != saga.ReasonInsufficientStock {
		t.Fatalf("expected insufficient_stock reason, got %s (%v)", got, err)
	}
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock in chain, got %v", err)
	}

	// Резерв sku-a был выполнен и должен быть возвращён.
	if got := f.stockOf(t, "sku-a"); got != 10 {
		t.Errorf("sku-a stock must be restored, got %d", got)
	}

	orders, _ := f.orders.ListByStatus(domain.OrderStatusCancelled)
	if len(orders) != 1 {
		t.Fatalf("expected cancelled header, got %d", len(orders))
	}
	entries, _ := f.journal.ListByOrder(orders[0].ID)
	for _, entry := range entries {
		if entry.Status != domain.JournalStatusReleased {
			t.Errorf("journal entry %s must be released, got %s", entry.ID, entry.Status)
		}
	}
}

func TestCancelOrder_ReturnsStock(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := f.saga.CancelOrder(order.ID); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	if got := f.stockOf(t, "sku-a"); got != 10 {
		t.Errorf("sku-a stock must be restored, got %d", got)
	}
	if got := f.stockOf(t, "sku-b"); got != 5 {
		t.Errorf("sku-b stock must be restored, got %d", got)
	}

	cancelled, err := f.saga.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	// Позиции отменённого заказа сохраняются для истории.
	if len(cancelled.Items) != 2 {
		t.Fatalf("cancelled order must keep items, got %d", len(cancelled.Items))
	}

	entries, _ := f.journal.ListByOrder(order.ID)
	for _, entry := range entries {
		if entry.Status != domain.JournalStatusReleased {
			t.Errorf("journal entry %s must be released, got %s", entry.ID, entry.Status)
		}
	}
}

func TestCancelOrder_RejectedFromShipped(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := f.saga.UpdateOrderStatus(order.ID, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if err := f.saga.UpdateOrderStatus(order.ID, domain.OrderStatusShipped); err != nil {
		t.Fatalf("to shipped: %v", err)
	}

	err = f.saga.CancelOrder(order.ID)
	if got := saga.ReasonOf(err); got != saga.ReasonInvalidTransition {
		t.Fatalf("expected invalid_transition reason, got %s (%v)", got, err)
	}

	// Отказ отмены ничего не возвращает на склад.
	if got := f.stockOf(t, "sku-a"); got != 8 {
		t.Errorf("sku-a stock must stay reserved, got %d", got)
	}
	got, _ := f.saga.GetOrder(order.ID)
	if got.Status != domain.OrderStatusShipped {
		t.Fatalf("status must stay shipped, got %s", got.Status)
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.saga.CancelOrder("ghost")
	if got := saga.ReasonOf(err); got != saga.ReasonNotFound {
		t.Fatalf("expected not_found reason, got %s (%v)", got, err)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := f.saga.UpdateOrderStatus(order.ID, "archived"); saga.ReasonOf(err) != saga.ReasonValidation {
		t.Fatalf("unknown status must be rejected with validation reason, got %v", err)
	}
	if err := f.saga.UpdateOrderStatus(order.ID, domain.OrderStatusDelivered); saga.ReasonOf(err) != saga.ReasonInvalidTransition {
		t.Fatalf("pending -> delivered must be rejected, got %v", err)
	}

	if err := f.saga.UpdateOrderStatus(order.ID, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}
	got, _ := f.saga.GetOrder(order.ID)
	if got.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", got.Status)
	}
}

// Запрос отмены через смену статуса обязан пройти полный путь отмены
// с возвратом резервов, а не просто переписать строку.
func TestUpdateOrderStatus_CancelDelegates(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := f.saga.UpdateOrderStatus(order.ID, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel via status update: %v", err)
	}
	if got := f.stockOf(t, "sku-a"); got != 10 {
		t.Fatalf("stock must be returned on cancel via status update, got %d", got)
	}
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := f.saga.MarkPaid(order.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	got, _ := f.saga.GetOrder(order.ID)
	if got.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}

	if err := f.saga.MarkPaid(order.ID); saga.ReasonOf(err) != saga.ReasonInvalidTransition {
		t.Fatalf("double payment must be rejected, got %v", err)
	}
}

func TestMarkRefunded(t *testing.T) {
	f := newFixture(t)

	order, err := f.saga.CreateOrder(validRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Возврат неоплаченного заказа запрещён.
	if err := f.saga.MarkRefunded(order.ID); saga.ReasonOf(err) != saga.ReasonInvalidTransition {
		t.Fatalf("refund of unpaid order must be rejected, got %v", err)
	}

	if err := f.saga.MarkPaid(order.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := f.saga.MarkRefunded(order.ID); err != nil {
		t.Fatalf("mark refunded: %v", err)
	}

	got, _ := f.saga.GetOrder(order.ID)
	if got.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", got.PaymentStatus)
	}

	// Возврат денег не трогает склад.
	if qty := f.stockOf(t, "sku-a"); qty != 8 {
		t.Fatalf("refund must not touch stock, got %d", qty)
	}
}

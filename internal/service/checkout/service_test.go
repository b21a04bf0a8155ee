package checkout_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/inventory"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/saga"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type fixture struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	ledger   *inventory.Ledger
	service  *checkout.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		carts:    memory.NewCartRepository(),
		products: memory.NewProductRepository(),
		ledger:   inventory.NewLedger(nil),
	}
	orders := memory.NewOrderRepository()
	items := memory.NewOrderItemRepository()
	journal := memory.NewJournalRepository()
	timeline := memory.NewTimelineRepository()

	now := time.Now().UTC()
	if err := f.products.Save(domain.Product{
		SKU: "sku-a", Name: "product a", PriceMinor: 100, CostMinor: 50,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("save product: %v", err)
	}
	if !f.ledger.Add(domain.StockRecord{SKU: "sku-a", Quantity: 5, ReorderLevel: 1}) {
		t.Fatal("add stock")
	}

	orchestrator := saga.NewOrchestratorWithoutMetrics(
		f.products, orders, items, journal, timeline, f.ledger, nil)
	f.service = checkout.NewService(f.carts, f.products, f.ledger, orchestrator, nil)
	return f
}

func TestAddToCart(t *testing.T) {
	f := newFixture(t)

	if err := f.service.AddToCart(1, "sku-a", 2); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	item, err := f.carts.Get(1, "sku-a")
	if err != nil {
		t.Fatalf("get cart item: %v", err)
	}
	if item.Qty != 2 {
		t.Fatalf("expected qty 2, got %d", item.Qty)
	}

	// Повторное добавление суммирует количество.
	if err := f.service.AddToCart(1, "sku-a", 1); err != nil {
		t.Fatalf("second add: %v", err)
	}
	item, _ = f.carts.Get(1, "sku-a")
	if item.Qty != 3 {
		t.Fatalf("expected cumulative qty 3, got %d", item.Qty)
	}
}

func TestAddToCart_Rejections(t *testing.T) {
	f := newFixture(t)

	if err := f.service.AddToCart(0, "sku-a", 1); !errors.Is(err, domain.ErrCustomerIDInvalid) {
		t.Fatalf("expected ErrCustomerIDInvalid, got %v", err)
	}
	if err := f.service.AddToCart(1, "sku-a", 0); !errors.Is(err, domain.ErrItemQtyInvalid) {
		t.Fatalf("expected ErrItemQtyInvalid, got %v", err)
	}
	if err := f.service.AddToCart(1, "ghost", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

// Проверяется ИТОГОВОЕ количество: на складе 5, в корзине 4, добавить 2 нельзя.
func TestAddToCart_TotalQuantityAgainstStock(t *testing.T) {
	f := newFixture(t)

	if err := f.service.AddToCart(1, "sku-a", 4); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := f.service.AddToCart(1, "sku-a", 2)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	// Корзина не изменилась.
	item, _ := f.carts.Get(1, "sku-a")
	if item.Qty != 4 {
		t.Fatalf("rejected add must not mutate cart, qty=%d", item.Qty)
	}
	// Добавление в корзину не резервирует склад.
	record, _ := f.ledger.Get("sku-a")
	if record.Quantity != 5 {
		t.Fatalf("cart must not reserve stock, got %d", record.Quantity)
	}
}

func TestRemoveFromCart(t *testing.T) {
	f := newFixture(t)

	_ = f.service.AddToCart(1, "sku-a", 1)
	if err := f.service.RemoveFromCart(1, "sku-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.service.RemoveFromCart(1, "sku-a"); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestViewCart(t *testing.T) {
	f := newFixture(t)

	_ = f.service.AddToCart(1, "sku-a", 3)
	view, err := f.service.ViewCart(1)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(view.Items))
	}
	if view.TotalMinor != 300 {
		t.Fatalf("expected total 300, got %d", view.TotalMinor)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Checkout(1, "Main street 1", "card")
	if err != nil {
		t.Fatalf("empty checkout must not fail: %v", err)
	}
	if order != nil {
		t.Fatalf("empty checkout must not create an order, got %+v", order)
	}
}

func TestCheckout_SuccessClearsCart(t *testing.T) {
	f := newFixture(t)

	_ = f.service.AddToCart(1, "sku-a", 2)
	order, err := f.service.Checkout(1, "Main street 1", "card")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order == nil || order.AmountMinor != 200 {
		t.Fatalf("unexpected order: %+v", order)
	}

	items, _ := f.carts.ListByCustomer(1)
	if len(items) != 0 {
		t.Fatalf("cart must be cleared after checkout, got %d items", len(items))
	}
	record, _ := f.ledger.Get("sku-a")
	if record.Quantity != 3 {
		t.Fatalf("checkout must reserve stock, got %d", record.Quantity)
	}
}

func TestCheckout_FailurePreservesCart(t *testing.T) {
	f := newFixture(t)

	_ = f.service.AddToCart(1, "sku-a", 4)
	// Конкурент выкупает склад между добавлением и checkout'ом.
	if !f.ledger.Reserve("sku-a", 3) {
		t.Fatal("competitor reserve failed")
	}

	order, err := f.service.Checkout(1, "Main street 1", "card")
	if err == nil {
		t.Fatal("expected checkout failure")
	}
	if order != nil {
		t.Fatalf("failed checkout must not return an order, got %+v", order)
	}
	if saga.ReasonOf(err) != saga.ReasonInsufficientStock {
		t.Fatalf("expected insufficient_stock reason, got %v", err)
	}

	// Корзина сохранена для повторной попытки.
	item, getErr := f.carts.Get(1, "sku-a")
	if getErr != nil || item.Qty != 4 {
		t.Fatalf("cart must be preserved on failure: %v %+v", getErr, item)
	}
	// Остаток не изменился сверх конкурентного резерва.
	record, _ := f.ledger.Get("sku-a")
	if record.Quantity != 2 {
		t.Fatalf("failed checkout must not consume stock, got %d", record.Quantity)
	}
}

func TestCheckout_BlankAddressFailsBeforeSaga(t *testing.T) {
	f := newFixture(t)

	_ = f.service.AddToCart(1, "sku-a", 1)
	_, err := f.service.Checkout(1, "", "card")
	if saga.ReasonOf(err) != saga.ReasonValidation {
		t.Fatalf("expected validation reason, got %v", err)
	}
	if _, getErr := f.carts.Get(1, "sku-a"); getErr != nil {
		t.Fatalf("cart must be preserved: %v", getErr)
	}
}

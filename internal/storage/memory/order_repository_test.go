package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func makeOrder(id string, customerID int64, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:              id,
		CustomerID:      customerID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		AmountMinor:     100,
		ShippingAddress: "Main street 1",
		PaymentMethod:   "card",
		OrderDate:       createdAt,
		Version:         1,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestOrderRepositoryCreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	order := makeOrder("order-1", 1, now)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(order); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("duplicate create must fail with ErrOrderExists, got %v", err)
	}

	got, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "order-1" || got.CustomerID != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

// Позиции не хранятся в заголовке: заголовочный репозиторий их отбрасывает.
func TestOrderRepositoryCreate_StripsItems(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := makeOrder("order-1", 1, time.Now().UTC())
	order.Items = []domain.OrderItem{{ID: "item-1", OrderID: "order-1"}}

	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := repo.Get("order-1")
	if len(got.Items) != 0 {
		t.Fatalf("header repository must not keep items, got %d", len(got.Items))
	}
}

func TestOrderRepositoryUpdate_VersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := makeOrder("order-1", 1, time.Now().UTC())
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}

	first := order
	first.Status = domain.OrderStatusProcessing
	if err := repo.Update(first); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Второе обновление с той же исходной версией должно упереться в конфликт.
	second := order
	second.Status = domain.OrderStatusCancelled
	if err := repo.Update(second); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}

	got, _ := repo.Get("order-1")
	if got.Status != domain.OrderStatusProcessing {
		t.Fatalf("conflicting update must not win, status=%s", got.Status)
	}
	if got.Version != order.Version+1 {
		t.Fatalf("expected version %d, got %d", order.Version+1, got.Version)
	}
}

func TestOrderRepositoryUpdate_NotFound(t *testing.T) {
	repo := memory.NewOrderRepository()
	err := repo.Update(makeOrder("ghost", 1, time.Now().UTC()))
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepositoryListByCustomer(t *testing.T) {
	repo := memory.NewOrderRepository()
	base := time.Now().UTC()

	for i, id := range []string{"order-1", "order-2", "order-3"} {
		order := makeOrder(id, 7, base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(order); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := repo.Create(makeOrder("other", 8, base)); err != nil {
		t.Fatalf("create other: %v", err)
	}

	orders, err := repo.ListByCustomer(7, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	// Новые первыми.
	if orders[0].ID != "order-3" || orders[1].ID != "order-2" {
		t.Fatalf("unexpected order: %s, %s", orders[0].ID, orders[1].ID)
	}

	all, err := repo.ListByCustomer(7, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders without limit, got %d", len(all))
	}
}

func TestOrderRepositoryListByStatus(t *testing.T) {
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	pending := makeOrder("order-1", 1, now)
	cancelled := makeOrder("order-2", 1, now)
	cancelled.Status = domain.OrderStatusCancelled
	_ = repo.Create(pending)
	_ = repo.Create(cancelled)

	got, err := repo.ListByStatus(domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "order-2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

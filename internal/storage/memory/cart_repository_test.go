package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func TestCartRepositoryUpsert_KeepsAddedAt(t *testing.T) {
	repo := memory.NewCartRepository()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	if err := repo.Upsert(domain.CartItem{CustomerID: 1, SKU: "sku-1", Qty: 2, AddedAt: first, UpdatedAt: first}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(domain.CartItem{CustomerID: 1, SKU: "sku-1", Qty: 5, AddedAt: later, UpdatedAt: later}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item, err := repo.Get(1, "sku-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.Qty != 5 {
		t.Fatalf("expected qty 5, got %d", item.Qty)
	}
	if !item.AddedAt.Equal(first) {
		t.Fatalf("upsert must keep original AddedAt, got %v", item.AddedAt)
	}
}

func TestCartRepositoryListByCustomer_Ordered(t *testing.T) {
	repo := memory.NewCartRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = repo.Upsert(domain.CartItem{CustomerID: 1, SKU: "b", Qty: 1, AddedAt: base.Add(time.Minute)})
	_ = repo.Upsert(domain.CartItem{CustomerID: 1, SKU: "a", Qty: 1, AddedAt: base.Add(2 * time.Minute)})
	_ = repo.Upsert(domain.CartItem{CustomerID: 1, SKU: "c", Qty: 1, AddedAt: base})
	_ = repo.Upsert(domain.CartItem{CustomerID: 2, SKU: "z", Qty: 1, AddedAt: base})

	items, err := repo.ListByCustomer(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].SKU != "c" || items[1].SKU != "b" || items[2].SKU != "a" {
		t.Fatalf("items must come in addition order: %v", items)
	}
}

func TestCartRepositoryRemoveClear(t *testing.T) {
	repo := memory.NewCartRepository()
	now := time.Now().UTC()

	_ = repo.Upsert(domain.CartItem{CustomerID: 1, SKU: "a", Qty: 1, AddedAt: now})
	_ = repo.Upsert(domain.CartItem{CustomerID: 1, SKU: "b", Qty: 1, AddedAt: now})

	if !repo.Remove(1, "a") {
		t.Fatal("remove of existing item must succeed")
	}
	if repo.Remove(1, "a") {
		t.Fatal("second remove must fail")
	}
	if repo.Remove(9, "a") {
		t.Fatal("remove from unknown cart must fail")
	}

	if err := repo.Clear(1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, _ := repo.ListByCustomer(1)
	if len(items) != 0 {
		t.Fatalf("cart must be empty after clear, got %d", len(items))
	}
	if _, err := repo.Get(1, "b"); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

package checkout

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/saga"
)

// Service — мост между корзиной покупателя и сагой заказа.
// Корзина очищается только после того, как сага отчиталась об успехе:
// при любой ошибке корзина остаётся нетронутой и покупатель может повторить.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	ledger   domain.StockLedger
	saga     saga.Orchestrator
	logger   *log.Entry
}

// NewService создаёт checkout-сервис.
func NewService(
	carts domain.CartRepository,
	products domain.ProductRepository,
	ledger domain.StockLedger,
	orchestrator saga.Orchestrator,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Service{
		carts:    carts,
		products: products,
		ledger:   ledger,
		saga:     orchestrator,
		logger:   logger,
	}
}

// AddToCart добавляет товар в корзину. До добавления проверяется доступность
// ИТОГОВОГО количества (уже лежащее + запрошенное): корзина не должна
// накапливать больше, чем есть на складе. Резерва при этом не происходит —
// склад списывается только на checkout.
func (s *Service) AddToCart(customerID int64, sku string, qty int32) error {
	if customerID <= 0 {
		return domain.ErrCustomerIDInvalid
	}
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	if _, err := s.products.Get(sku); err != nil {
		return fmt.Errorf("product %s: %w", sku, err)
	}

	total := qty
	existing, err := s.carts.Get(customerID, sku)
	if err == nil {
		total += existing.Qty
	}

	if !s.ledger.CheckAvailability(sku, total) {
		return fmt.Errorf("%w: %s x%d requested, cart already holds %d",
			domain.ErrInsufficientStock, sku, qty, total-qty)
	}

	now := time.Now().UTC()
	item := domain.CartItem{
		CustomerID: customerID,
		SKU:        sku,
		Qty:        total,
		AddedAt:    now,
		UpdatedAt:  now,
	}
	if err := s.carts.Upsert(item); err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"sku":         sku,
		"qty":         total,
	}).Debug("cart item upserted")
	return nil
}

// RemoveFromCart убирает позицию из корзины.
func (s *Service) RemoveFromCart(customerID int64, sku string) error {
	if !s.carts.Remove(customerID, sku) {
		return domain.ErrCartItemNotFound
	}
	return nil
}

// CartView — содержимое корзины с актуальной оценкой стоимости.
type CartView struct {
	Items      []domain.CartItem
	TotalMinor int64
}

// ViewCart возвращает корзину с суммой по текущим ценам каталога.
// Сумма ориентировочная: окончательные цены фиксирует сага при checkout.
func (s *Service) ViewCart(customerID int64) (CartView, error) {
	items, err := s.carts.ListByCustomer(customerID)
	if err != nil {
		return CartView{}, fmt.Errorf("list cart: %w", err)
	}

	view := CartView{Items: items}
	for _, item := range items {
		product, err := s.products.Get(item.SKU)
		if err != nil {
			// Товар мог исчезнуть из каталога после добавления в корзину.
			continue
		}
		view.TotalMinor += product.PriceMinor * int64(item.Qty)
	}
	return view, nil
}

// Checkout собирает позиции из корзины и передаёт их саге.
// Пустая корзина — не ошибка: возвращается nil без вызова саги.
// Цены из корзины не используются: сага перечитывает каталог.
// Корзина очищается только после успеха саги.
func (s *Service) Checkout(customerID int64, shippingAddress, paymentMethod string) (*domain.Order, error) {
	cartItems, err := s.carts.ListByCustomer(customerID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if len(cartItems) == 0 {
		s.logger.WithField("customer_id", customerID).Debug("checkout skipped: empty cart")
		return nil, nil
	}

	items := make([]saga.ItemRequest, 0, len(cartItems))
	for _, cartItem := range cartItems {
		items = append(items, saga.ItemRequest{SKU: cartItem.SKU, Qty: cartItem.Qty})
	}

	order, err := s.saga.CreateOrder(saga.CreateOrderRequest{
		CustomerID:      customerID,
		Items:           items,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
	})
	if err != nil {
		// Корзина не трогается: покупатель может исправить и повторить.
		s.logger.WithError(err).WithField("customer_id", customerID).Warn("checkout failed, cart preserved")
		return nil, err
	}

	if err := s.carts.Clear(customerID); err != nil {
		// Заказ уже создан; незачищенная корзина — косметическая проблема.
		s.logger.WithError(err).WithField("customer_id", customerID).Error("failed to clear cart after checkout")
	}

	s.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"order_id":    order.ID,
	}).Info("checkout completed")
	return &order, nil
}

package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/inventory"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

const productKeyPrefix = "product:"

// Service управляет каталогом товаров и их складскими записями.
// Чтение товара идёт через сквозной кэш с фиксированным TTL; кэш никогда
// не используется для складских решений — остатками владеет только Ledger.
type Service struct {
	products domain.ProductRepository
	ledger   *inventory.Ledger
	cache    domain.Cache
	logger   *log.Entry
	producer *kafka.Producer // опциональный producer для событий склада
}

// NewService создаёт сервис каталога. cache может быть nil — тогда каждое
// чтение идёт напрямую в хранилище.
func NewService(products domain.ProductRepository, ledger *inventory.Ledger, cache domain.Cache, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{
		products: products,
		ledger:   ledger,
		cache:    cache,
		logger:   logger,
	}
}

// SetProducer подключает публикацию складских событий.
func (s *Service) SetProducer(producer *kafka.Producer) {
	s.producer = producer
}

// AddProduct регистрирует товар в каталоге и заводит для него складскую
// запись с начальным остатком. Складская запись живёт, пока живёт товар.
func (s *Service) AddProduct(product domain.Product, initialQty, reorderLevel int32, warehouse string) error {
	if errs := product.Validate(); len(errs) != 0 {
		return fmt.Errorf("invalid product %s: %v", product.SKU, errs)
	}
	if initialQty < 0 {
		return domain.ErrStockQtyInvalid
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := s.products.Save(product); err != nil {
		return fmt.Errorf("save product: %w", err)
	}

	if !s.ledger.Add(domain.StockRecord{
		SKU:               product.SKU,
		Quantity:          initialQty,
		ReorderLevel:      reorderLevel,
		WarehouseLocation: warehouse,
		LastRestocked:     now,
	}) {
		// Товар сохранён, а складская запись — нет: откатываем каталог,
		// чтобы не оставить товар без владельца остатка.
		s.products.Delete(product.SKU)
		return fmt.Errorf("%w: stock record for %s", domain.ErrStockQtyInvalid, product.SKU)
	}

	s.logger.WithFields(log.Fields{
		"sku": product.SKU,
		"qty": initialQty,
	}).Info("product added to catalog")
	return nil
}

// GetProduct возвращает товар, используя сквозной кэш.
// Промах или протухшая запись проваливаются в хранилище.
func (s *Service) GetProduct(sku string) (domain.Product, error) {
	key := productKeyPrefix + sku

	if s.cache != nil {
		if raw, ok := s.cache.Get(key); ok {
			var product domain.Product
			if err := json.Unmarshal(raw, &product); err == nil {
				return product, nil
			}
			// Битую запись выбрасываем и читаем из хранилища.
			s.cache.Invalidate(key)
		}
	}

	product, err := s.products.Get(sku)
	if err != nil {
		return domain.Product{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(product); err == nil {
			s.cache.Put(key, raw)
		}
	}
	return product, nil
}

// UpdatePrice меняет цену товара и сбрасывает его запись в кэше.
// Уже созданные позиции заказов хранят снимок старой цены и не меняются.
func (s *Service) UpdatePrice(sku string, priceMinor int64) error {
	if priceMinor < 0 {
		return domain.ErrProductPriceInvalid
	}

	product, err := s.products.Get(sku)
	if err != nil {
		return err
	}
	product.PriceMinor = priceMinor
	product.UpdatedAt = time.Now().UTC()
	if err := s.products.Update(product); err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(productKeyPrefix + sku)
	}
	return nil
}

// RemoveProduct убирает товар из каталога вместе со складской записью.
func (s *Service) RemoveProduct(sku string) error {
	if !s.products.Delete(sku) {
		return domain.ErrProductNotFound
	}
	s.ledger.Remove(sku)
	if s.cache != nil {
		s.cache.Invalidate(productKeyPrefix + sku)
	}
	return nil
}

// Restock пополняет остаток и обновляет отметку последнего пополнения.
func (s *Service) Restock(sku string, qty int32) error {
	if qty <= 0 {
		return domain.ErrStockQtyInvalid
	}
	if !s.ledger.Release(sku, qty) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, sku)
	}
	s.ledger.MarkRestocked(sku)

	s.logger.WithFields(log.Fields{
		"sku": sku,
		"qty": qty,
	}).Info("stock replenished")
	return nil
}

// LowStock возвращает складские записи с остатком не выше порога дозаказа
// и публикует по ним события (если producer настроен).
func (s *Service) LowStock() []domain.StockRecord {
	records := s.ledger.LowStock()

	if s.producer != nil {
		for _, record := range records {
			event := kafka.NewStockEvent(kafka.EventTypeStockLow, record.SKU, record.Quantity)
			if err := s.producer.PublishEvent(kafka.TopicStockEvents, record.SKU, event); err != nil {
				s.logger.WithError(err).WithField("sku", record.SKU).Warn("failed to publish low stock event")
			}
		}
	}
	return records
}

// SetStock выставляет точное значение остатка (административная коррекция).
func (s *Service) SetStock(sku string, qty int32) error {
	if !s.ledger.SetExact(sku, qty) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, sku)
	}
	return nil
}

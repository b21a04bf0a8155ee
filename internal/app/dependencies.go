package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/cache"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/inventory"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/journal"
	"github.com/vladislavdragonenkov/shop/internal/service/saga"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Products domain.ProductRepository
	Orders   domain.OrderRepository
	Items    domain.OrderItemRepository
	Carts    domain.CartRepository
	Journal  domain.JournalRepository
	Timeline domain.TimelineRepository

	Ledger   *inventory.Ledger
	Cache    domain.Cache
	Saga     saga.Orchestrator
	Checkout *checkout.Service
	Catalog  *catalog.Service
	Sweeper  *journal.Worker

	Store    *postgres.Store
	Redis    *redis.Client
	Producer *kafka.Producer
	Logger   *log.Entry
}

// NewDependencies собирает граф зависимостей согласно конфигурации.
// Хранилище — PostgreSQL при заданном DSN, иначе in-memory; кэш — Redis
// при заданном адресе, иначе локальный с TTL; Kafka опциональна.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		deps.Store = store
		deps.Products = postgres.NewProductRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Items = postgres.NewOrderItemRepository(store)
		deps.Carts = postgres.NewCartRepository(store)
		deps.Journal = postgres.NewJournalRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		logger.Info("using postgres storage")
	} else {
		deps.Products = memory.NewProductRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Items = memory.NewOrderItemRepository()
		deps.Carts = memory.NewCartRepository()
		deps.Journal = memory.NewJournalRepository()
		deps.Timeline = memory.NewTimelineRepository()
		logger.Info("using in-memory storage")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, falling back to in-memory cache")
			_ = client.Close()
			deps.Cache = cache.NewMemory(cfg.CacheTTL, nil)
		} else {
			deps.Redis = client
			deps.Cache = cache.NewRedis(client, "shop", cfg.CacheTTL, logger.WithField("component", "redis-cache"))
			logger.WithField("addr", cfg.RedisAddr).Info("using redis cache")
		}
	} else {
		deps.Cache = cache.NewMemory(cfg.CacheTTL, nil)
	}

	deps.Ledger = inventory.NewLedger(logger.WithField("component", "stock-ledger"))

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err == nil && producer != nil {
		deps.Producer = producer
	}

	sagaLogger := logger.WithField("component", "order-saga")
	if deps.Producer != nil {
		deps.Saga = saga.NewOrchestratorWithKafka(
			deps.Products, deps.Orders, deps.Items, deps.Journal, deps.Timeline,
			deps.Ledger, deps.Producer, sagaLogger,
		)
	} else {
		deps.Saga = saga.NewOrchestrator(
			deps.Products, deps.Orders, deps.Items, deps.Journal, deps.Timeline,
			deps.Ledger, sagaLogger,
		)
	}

	deps.Checkout = checkout.NewService(
		deps.Carts, deps.Products, deps.Ledger, deps.Saga,
		logger.WithField("component", "checkout"),
	)

	deps.Catalog = catalog.NewService(
		deps.Products, deps.Ledger, deps.Cache,
		logger.WithField("component", "catalog"),
	)
	if deps.Producer != nil {
		deps.Catalog.SetProducer(deps.Producer)
	}

	deps.Sweeper = journal.NewWorker(
		deps.Journal, deps.Orders, deps.Ledger,
		journal.WithLogger(logger.WithField("component", "journal-sweeper")),
		journal.WithSweepInterval(cfg.SweepInterval),
		journal.WithStaleAge(cfg.StaleAge),
	)

	return deps, nil
}

// Close освобождает внешние ресурсы в обратном порядке создания.
func (d *Dependencies) Close() {
	closeKafka(d.Producer, d.Logger)
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

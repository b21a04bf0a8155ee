package journal

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultStaleAge      = 5 * time.Minute
	defaultBatchSize     = 100
)

// WorkerOptions задаёт параметры sweeper'а журнала резервов.
type WorkerOptions struct {
	Logger        *log.Entry
	SweepInterval time.Duration
	StaleAge      time.Duration
	BatchSize     int
	Metrics       *metrics.CheckoutMetrics
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithSweepInterval задаёт частоту проходов по журналу.
func WithSweepInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.SweepInterval = interval
	}
}

// WithStaleAge задаёт возраст, после которого pending-запись считается потерянной.
func WithStaleAge(age time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.StaleAge = age
	}
}

// WithBatchSize задаёт размер батча записей за проход.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) {
		opts.BatchSize = batchSize
	}
}

// WithMetrics подключает метрики sweeper'а.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *WorkerOptions) {
		opts.Metrics = m
	}
}

// Worker — sweeper журнала резервов: повторный проход компенсаций.
// Pending-запись, зависшая дольше StaleAge, означает сбой между резервом
// и фиксацией заказа. Worker сверяет её с состоянием заказа: живой заказ
// закрепляет резерв (committed), отменённый или отсутствующий — возвращает
// количество на склад (released). Оба исхода идемпотентны, проход можно
// повторять сколько угодно раз.
type Worker struct {
	journal       domain.JournalRepository
	orders        domain.OrderRepository
	ledger        domain.StockLedger
	logger        *log.Entry
	sweepInterval time.Duration
	staleAge      time.Duration
	batchSize     int
	metrics       *metrics.CheckoutMetrics
}

// NewWorker создаёт sweeper журнала.
func NewWorker(journal domain.JournalRepository, orders domain.OrderRepository, ledger domain.StockLedger, options ...Option) *Worker {
	opts := WorkerOptions{
		SweepInterval: defaultSweepInterval,
		StaleAge:      defaultStaleAge,
		BatchSize:     defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "journal-sweeper")
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.StaleAge <= 0 {
		opts.StaleAge = defaultStaleAge
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Worker{
		journal:       journal,
		orders:        orders,
		ledger:        ledger,
		logger:        logger,
		sweepInterval: opts.SweepInterval,
		staleAge:      opts.StaleAge,
		batchSize:     opts.BatchSize,
		metrics:       opts.Metrics,
	}
}

// Run запускает периодический проход по журналу до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.journal == nil || w.orders == nil || w.ledger == nil {
		w.logger.Warn("journal sweeper is disabled: missing dependencies")
		return
	}

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.WithFields(log.Fields{
		"interval":  w.sweepInterval,
		"stale_age": w.staleAge,
	}).Info("journal sweeper started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("journal sweeper stopped")
			return
		case <-ticker.C:
			if n, err := w.SweepOnce(); err != nil {
				w.logger.WithError(err).Warn("journal sweep failed")
			} else if n > 0 {
				w.logger.WithField("processed", n).Info("journal sweep completed")
			}
		}
	}
}

// SweepOnce обрабатывает один батч stale-записей и возвращает их число.
func (w *Worker) SweepOnce() (int, error) {
	before := time.Now().UTC().Add(-w.staleAge)
	entries, err := w.journal.PullStale(before, w.batchSize)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		w.resolve(entry)
	}
	return len(entries), nil
}

// resolve закрывает одну зависшую запись по состоянию её заказа.
func (w *Worker) resolve(entry domain.JournalEntry) {
	order, err := w.orders.Get(entry.OrderID)
	switch {
	case err == nil && order.Status != domain.OrderStatusCancelled:
		// Заказ жив: резерв легален, закрепляем его.
		if err := w.journal.MarkCommitted(entry.OrderID); err != nil {
			w.logger.WithError(err).WithField("order_id", entry.OrderID).Warn("failed to commit stale journal entry")
		}
	case err == nil || errors.Is(err, domain.ErrOrderNotFound):
		// Заказ отменён или так и не был записан: возвращаем количество на склад.
		if !w.ledger.Release(entry.SKU, entry.Qty) {
			w.logger.WithFields(log.Fields{
				"entry_id": entry.ID,
				"sku":      entry.SKU,
				"qty":      entry.Qty,
			}).Error("failed to release leaked reservation")
			return
		}
		if err := w.journal.MarkReleased(entry.ID); err != nil {
			w.logger.WithError(err).WithField("entry_id", entry.ID).Warn("failed to close replayed journal entry")
		}
		if w.metrics != nil {
			w.metrics.RecordJournalReplay()
		}
		w.logger.WithFields(log.Fields{
			"entry_id": entry.ID,
			"order_id": entry.OrderID,
			"sku":      entry.SKU,
			"qty":      entry.Qty,
		}).Info("leaked reservation released")
	default:
		w.logger.WithError(err).WithField("order_id", entry.OrderID).Warn("failed to load order for stale journal entry")
	}
}

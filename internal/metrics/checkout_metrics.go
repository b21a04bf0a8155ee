package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики саги создания заказа и складских операций.
type CheckoutMetrics struct {
	// Счётчики исходов саги
	ordersCreated   prometheus.Counter
	ordersFailed    prometheus.Counter
	ordersCancelled prometheus.Counter
	rollbacks       prometheus.Counter

	// Резерв прошёл проверку доступности, но не прошёл атомарный декремент:
	// гонка между валидационным проходом и циклом резервирования.
	reserveConflicts prometheus.Counter

	// Компенсационные шаги, завершившиеся ошибкой
	compensationFailures prometheus.Counter

	// Журнал резервов
	journalReplays prometheus.Counter

	// Гистограммы времени выполнения
	checkoutDuration prometheus.Histogram
	stepDuration     *prometheus.HistogramVec

	// Gauge для активных саг
	activeSagas prometheus.Gauge
}

// NewCheckoutMetrics создаёт метрики в default registerer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer создаёт метрики в указанном registerer (для тестов).
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders committed by the checkout saga",
		}),
		ordersFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_failed_total",
			Help: "Total number of checkout saga runs that ended in failure",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		rollbacks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_rollbacks_total",
			Help: "Total number of compensating rollbacks performed by the saga",
		}),
		reserveConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_reserve_conflicts_total",
			Help: "Reservations that passed the availability check but lost the stock race",
		}),
		compensationFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_compensation_failures_total",
			Help: "Compensation steps (release/delete) that themselves failed",
		}),
		journalReplays: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_journal_replays_total",
			Help: "Stale reservation journal entries released by the sweeper",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_duration_seconds",
			Help:    "Duration of checkout saga runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_step_duration_seconds",
			Help:    "Duration of individual checkout saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		activeSagas: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_active_sagas",
			Help: "Number of currently running checkout sagas",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик успешно созданных заказов.
func (m *CheckoutMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderFailed увеличивает счётчик неудачных саг.
func (m *CheckoutMetrics) RecordOrderFailed() {
	m.ordersFailed.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *CheckoutMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordRollback увеличивает счётчик компенсационных откатов.
func (m *CheckoutMetrics) RecordRollback() {
	m.rollbacks.Inc()
}

// RecordReserveConflict фиксирует проигранную гонку за остаток.
func (m *CheckoutMetrics) RecordReserveConflict() {
	m.reserveConflicts.Inc()
}

// RecordCompensationFailure фиксирует ошибку компенсационного шага.
func (m *CheckoutMetrics) RecordCompensationFailure() {
	m.compensationFailures.Inc()
}

// RecordJournalReplay фиксирует возврат резерва по stale-записи журнала.
func (m *CheckoutMetrics) RecordJournalReplay() {
	m.journalReplays.Inc()
}

// RecordCheckoutDuration записывает время выполнения саги.
func (m *CheckoutMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага саги.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// SagaStarted увеличивает число активных саг.
func (m *CheckoutMetrics) SagaStarted() {
	m.activeSagas.Inc()
}

// SagaFinished уменьшает число активных саг.
func (m *CheckoutMetrics) SagaFinished() {
	m.activeSagas.Dec()
}

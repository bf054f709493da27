package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа в оформлении заказа (значения label reason).
const (
	RejectCustomerNotFound = "customer_not_found"
	RejectInvalidProduct   = "invalid_product"
	RejectInvalidRequest   = "invalid_request"
	RejectConflict         = "conflict"
	RejectInternal         = "internal"
)

// OrderMetrics собирает метрики оформления заказов и каталога.
type OrderMetrics struct {
	ordersCreated    prometheus.Counter
	ordersRejected   *prometheus.CounterVec
	createDuration   prometheus.Histogram
	itemsPerOrder    prometheus.Histogram
	unitsSold        prometheus.Counter
	productsCreated  prometheus.Counter
	customersCreated prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
// Повторный вызов переиспользует уже зарегистрированные коллекторы.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created",
		})),
		ordersRejected: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_orders_rejected_total",
			Help: "Total number of rejected order requests by reason",
		}, []string{"reason"})),
		createDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shop_order_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		})),
		itemsPerOrder: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shop_order_items",
			Help:    "Number of distinct products per created order",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		})),
		unitsSold: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_stock_units_sold_total",
			Help: "Total number of stock units decremented by created orders",
		})),
		productsCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_products_created_total",
			Help: "Total number of products created",
		})),
		customersCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_customers_created_total",
			Help: "Total number of customers created",
		})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			panic(fmt.Sprintf("collector already registered with type %T", already.ExistingCollector))
		}
		return existing
	}
	panic(fmt.Sprintf("register collector: %v", err))
}

// RecordOrderCreated учитывает успешно оформленный заказ.
func (m *OrderMetrics) RecordOrderCreated(items int, units int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.itemsPerOrder.Observe(float64(items))
	m.unitsSold.Add(float64(units))
	m.createDuration.Observe(duration.Seconds())
}

// RecordOrderRejected учитывает отказ с указанной причиной.
func (m *OrderMetrics) RecordOrderRejected(reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(reason).Inc()
	m.createDuration.Observe(duration.Seconds())
}

// RecordProductCreated увеличивает счётчик созданных товаров.
func (m *OrderMetrics) RecordProductCreated() {
	if m == nil {
		return
	}
	m.productsCreated.Inc()
}

// RecordCustomerCreated увеличивает счётчик созданных клиентов.
func (m *OrderMetrics) RecordCustomerCreated() {
	if m == nil {
		return
	}
	m.customersCreated.Inc()
}

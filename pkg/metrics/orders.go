package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// OrderMetrics counts cart, checkout and order lifecycle operations.
type OrderMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewOrderMetrics registers the order metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecom_order_operations_total",
		Help: "Cart, checkout and order operations by outcome.",
	}, []string{"operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecom_order_operation_duration_seconds",
		Help:    "Duration of cart, checkout and order operations in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation"})
	reg.MustRegister(operations, duration)
	return &OrderMetrics{operations: operations, duration: duration}
}

// Observe records the outcome and latency of a single operation.
func (m *OrderMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.operations == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	op := normalizeLabel(operation)
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOrderMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	started := time.Now().Add(-150 * time.Millisecond)
	m.Observe("checkout", started, nil)
	m.Observe("checkout", started, errors.New("insufficient stock"))
	m.Observe("checkout", started, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "ecom_order_operations_total", map[string]string{"operation": "checkout", "status": StatusSuccess}); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "ecom_order_operations_total", map[string]string{"operation": "checkout", "status": StatusError}); err != nil {
		t.Fatalf("fetch error: %v", err)
	} else if got != 1 {
		t.Fatalf("expected error=1, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "ecom_order_operation_duration_seconds", map[string]string{"operation": "checkout"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestHTTPMetricsUsesRouteLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest(http.MethodPost, "/api/v1/orders/{orderId}/cancel", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "", http.StatusNotFound, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "ecom_http_requests_total", map[string]string{"route": "/api/v1/orders/{orderId}/cancel", "status": "200"}); err != nil || got != 1 {
		t.Fatalf("expected one cancel request, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "ecom_http_requests_total", map[string]string{"route": "unknown", "status": "404"}); err != nil || got != 1 {
		t.Fatalf("expected unknown route label, got %f err=%v", got, err)
	}
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order_placed")
	m.IncPublished("order_placed")
	m.IncFailed("order_cancelled")
	m.ObserveBatch(time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "ecom_outbox_published_total", map[string]string{"event_type": "order_placed"}); err != nil || got != 2 {
		t.Fatalf("expected published=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "ecom_outbox_failed_total", map[string]string{"event_type": "order_cancelled"}); err != nil || got != 1 {
		t.Fatalf("expected failed=1, got %f err=%v", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewOrderMetrics(nil).Observe("checkout", time.Now(), nil)
	NewHTTPMetrics(nil).ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	NewOutboxMetrics(nil).IncPublished("order_placed")
	var nilMetrics *OrderMetrics
	nilMetrics.Observe("checkout", time.Now(), nil)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

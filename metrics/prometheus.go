package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	supplierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplier_requests_total",
			Help: "Total number of requests sent to the supplier.",
		},
		[]string{"source", "status"},
	)
	supplierRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supplier_request_duration_seconds",
			Help:    "Histogram of supplier request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"source", "status"},
	)
	rateLimitRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supplier_rate_limit_retries_total",
			Help: "Number of retries caused by supplier rate limiting.",
		},
	)
	productOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_product_outcomes_total",
			Help: "Products by pipeline outcome (created, updated, duplicate, below_margin, invalid).",
		},
		[]string{"outcome"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "endpoint", "status"},
	)
)

func init() {
	prometheus.MustRegister(supplierRequestsTotal)
	prometheus.MustRegister(supplierRequestDuration)
	prometheus.MustRegister(rateLimitRetriesTotal)
	prometheus.MustRegister(productOutcomesTotal)
	prometheus.MustRegister(httpRequestsTotal)
}

// RecordSupplierRequest записывает метрики для запроса к поставщику.
// statusCode 0 означает сетевую ошибку без ответа.
func RecordSupplierRequest(source string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	supplierRequestsTotal.WithLabelValues(source, status).Inc()
	supplierRequestDuration.WithLabelValues(source, status).Observe(duration.Seconds())
}

func RecordRateLimitRetry() {
	rateLimitRetriesTotal.Inc()
}

func RecordProductOutcome(outcome string) {
	productOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordRequest записывает метрики для входящего HTTP-запроса.
func RecordRequest(method, endpoint string, statusCode int) {
	httpRequestsTotal.WithLabelValues(method, endpoint, classifyStatus(statusCode)).Inc()
}

// classifyStatus классифицирует HTTP-статус код в строку.
func classifyStatus(statusCode int) string {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return "429"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	case statusCode == 0:
		return "network_error"
	}
	return "unknown"
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/gymdesk/gymdesk/internal/jobs"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	paymentAmount   *prometheus.CounterVec
	sales           *prometheus.CounterVec
	saleRevenue     *prometheus.CounterVec
	stockRejections *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises the registry with HTTP, business and job metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymdesk_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gymdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymdesk_payments_total",
		Help: "Membership payments recorded by gym and method.",
	}, []string{"gym", "method"})
	paymentAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymdesk_payment_amount_total",
		Help: "Sum of recorded membership payments by gym.",
	}, []string{"gym"})
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymdesk_sales_total",
		Help: "Product sales recorded by gym and method.",
	}, []string{"gym", "method"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymdesk_sale_revenue_total",
		Help: "Sum of recorded sale totals by gym.",
	}, []string{"gym"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymdesk_stock_rejections_total",
		Help: "Stock changes refused because they would go below zero.",
	}, []string{"reason"})
	registry.MustRegister(requests, duration, payments, paymentAmount, sales, revenue, rejections)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		payments:        payments,
		paymentAmount:   paymentAmount,
		sales:           sales,
		saleRevenue:     revenue,
		stockRejections: rejections,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Jobs returns the background job collectors bound to this registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// PaymentRecorded counts a membership payment.
func (m *Metrics) PaymentRecorded(gym, method string, amount float64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(gym, method).Inc()
	m.paymentAmount.WithLabelValues(gym).Add(amount)
}

// SaleRecorded counts a product sale.
func (m *Metrics) SaleRecorded(gym, method string, total float64) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(gym, method).Inc()
	m.saleRevenue.WithLabelValues(gym).Add(total)
}

// StockRejected counts a refused stock change.
func (m *Metrics) StockRejected(reason string) {
	if m == nil {
		return
	}
	m.stockRejections.WithLabelValues(reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

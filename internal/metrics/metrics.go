package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry and the collectors of the service
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ordersSaved     *prometheus.CounterVec
	ordersCompleted prometheus.Counter
	pickMismatches  prometheus.Counter
	productsImport  prometheus.Counter
}

// New creates a registry with HTTP and order workflow collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockroom_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ordersSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_orders_saved_total",
			Help: "Orders persisted, split into created and updated.",
		}, []string{"kind"}),
		ordersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockroom_orders_completed_total",
			Help: "Orders moved to Completed.",
		}),
		pickMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockroom_pick_mismatches_total",
			Help: "Pick records whose picked quantity differed from the requested one.",
		}),
		productsImport: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockroom_products_imported_total",
			Help: "Products loaded through catalog imports.",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.ordersSaved,
		m.ordersCompleted,
		m.pickMismatches,
		m.productsImport,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

// Handler serves the exposition format for /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency per chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// OrderSaved counts a persisted order
func (m *Metrics) OrderSaved(created bool) {
	if m == nil {
		return
	}
	kind := "updated"
	if created {
		kind = "created"
	}
	m.ordersSaved.WithLabelValues(kind).Inc()
}

// OrderCompleted counts a completion and its mismatched lines
func (m *Metrics) OrderCompleted(mismatches int) {
	if m == nil {
		return
	}
	m.ordersCompleted.Inc()
	m.pickMismatches.Add(float64(mismatches))
}

// ProductsImported counts products loaded by one import
func (m *Metrics) ProductsImported(n int) {
	if m == nil {
		return
	}
	m.productsImport.Add(float64(n))
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

// Package metrics holds the Prometheus collectors for the extent service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plat_extent",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plat_extent",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})

	DocumentsReduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plat_extent",
		Subsystem: "extent",
		Name:      "documents_reduced_total",
		Help:      "Documents passed through the extent reducer",
	}, []string{"source"})

	EmptyExtents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plat_extent",
		Subsystem: "extent",
		Name:      "empty_total",
		Help:      "Documents that yielded no extent",
	}, []string{"source"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plat_extent",
		Subsystem: "fetch",
		Name:      "errors_total",
		Help:      "Source documents that could not be fetched or decoded",
	}, []string{"source"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plat_extent",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Time to fetch and decode one source document",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"})

	ViewportFits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plat_extent",
		Subsystem: "viewport",
		Name:      "fits_total",
		Help:      "Viewport computations by outcome (fitted or default)",
	}, []string{"outcome"})
)

// statusRecorder captures the response status for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request count and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

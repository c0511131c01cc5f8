package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)

	// OptimizeRuns counts optimization runs by algorithm and outcome
	// (success, partial, or an error kind).
	OptimizeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_runs_total", Help: "Optimization runs by algorithm and outcome."},
		[]string{"algorithm", "outcome"},
	)
	// OptimizeDuration records wall time per run in seconds
	OptimizeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "optimizer_run_duration_seconds", Help: "Optimization run duration in seconds.", Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}},
		[]string{"algorithm"},
	)
	// OptimizeCoverage records the demand coverage of successful runs
	OptimizeCoverage = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimizer_demand_coverage_ratio", Help: "Demand coverage of successful runs.", Buckets: prometheus.LinearBuckets(0.1, 0.1, 10)},
	)
	// OptimizeRoutes records the number of routes per successful run
	OptimizeRoutes = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimizer_routes", Help: "Routes per successful run.", Buckets: []float64{1, 2, 4, 8, 12, 16, 24, 32}},
	)
	// OptimizeInFlight is the number of runs executing now
	OptimizeInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "optimizer_runs_in_flight", Help: "Optimization runs currently executing."},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(OptimizeRuns)
		Registry.MustRegister(OptimizeDuration)
		Registry.MustRegister(OptimizeCoverage)
		Registry.MustRegister(OptimizeRoutes)
		Registry.MustRegister(OptimizeInFlight)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request counts and durations. route is the mux
// pattern, never the raw path, so ids do not explode label cardinality.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		code := strconv.Itoa(sw.status)
		HTTPRequests.WithLabelValues(r.Method, route, code).Inc()
		HTTPDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming handlers working behind Instrument.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
